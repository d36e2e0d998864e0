package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOrdering(t *testing.T) {
	dev := New(2)
	defer dev.Close()
	s := dev.NewStream("test")

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		s.Submit("append", func() error {
			got = append(got, i)
			return nil
		})
	}
	require.NoError(t, s.Wait())

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestStreamErrorSurfacesAtWait(t *testing.T) {
	dev := New(2)
	defer dev.Close()
	s := dev.NewStream("test")

	boom := errors.New("boom")
	ran := false
	s.Submit("fail", func() error { return boom })
	s.Submit("after", func() error {
		ran = true
		return nil
	})

	err := s.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran, "tasks after a failure must be skipped, not executed")

	// The error state clears at Wait; the stream is usable again.
	s.Submit("ok", func() error { ran = true; return nil })
	require.NoError(t, s.Wait())
	assert.True(t, ran)
}

func TestStreamPanicBecomesExecError(t *testing.T) {
	dev := New(1)
	defer dev.Close()
	s := dev.NewStream("test")

	s.Submit("explode", func() error { panic("kaboom") })
	err := s.Wait()
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "explode", execErr.Op)
	assert.Contains(t, execErr.Error(), "kaboom")
}

func TestStreamWaitIsIdempotent(t *testing.T) {
	dev := New(1)
	defer dev.Close()
	s := dev.NewStream("test")

	s.Submit("noop", func() error { return nil })
	require.NoError(t, s.Wait())
	require.NoError(t, s.Wait())
}
