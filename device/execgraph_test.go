package device

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records node completions in order under a lock, so tests can
// assert ordering between dependent nodes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, name)
}

func (j *journal) indexOf(name string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, e := range j.entries {
		if e == name {
			return i
		}
	}
	return -1
}

func noteNode(j *journal, name string, deps ...int) CapturedNode {
	return CapturedNode{
		Name:   name,
		Params: NodeParams{Op: name, Run: func() error { j.add(name); return nil }},
		Deps:   deps,
	}
}

func TestCaptureRejectsForwardDeps(t *testing.T) {
	j := &journal{}
	_, err := Capture([]CapturedNode{
		noteNode(j, "a", 1),
		noteNode(j, "b"),
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Capture([]CapturedNode{noteNode(j, "self", 0)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCaptureRejectsMissingRun(t *testing.T) {
	_, err := Capture([]CapturedNode{{Name: "empty"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExecInstanceRespectsDependencies(t *testing.T) {
	dev := New(4)
	defer dev.Close()
	s := dev.NewStream("test")

	// Diamond: a -> {b, c} -> d.
	j := &journal{}
	eg, err := Capture([]CapturedNode{
		noteNode(j, "a"),
		noteNode(j, "b", 0),
		noteNode(j, "c", 0),
		noteNode(j, "d", 1, 2),
	})
	require.NoError(t, err)

	inst := eg.Instantiate(4)
	for run := 0; run < 20; run++ {
		j.mu.Lock()
		j.entries = nil
		j.mu.Unlock()

		inst.Launch(s)
		require.NoError(t, s.Wait())

		require.Len(t, j.entries, 4)
		assert.Less(t, j.indexOf("a"), j.indexOf("b"))
		assert.Less(t, j.indexOf("a"), j.indexOf("c"))
		assert.Less(t, j.indexOf("b"), j.indexOf("d"))
		assert.Less(t, j.indexOf("c"), j.indexOf("d"))
	}
}

func TestExecInstanceSingleLane(t *testing.T) {
	dev := New(1)
	defer dev.Close()
	s := dev.NewStream("test")

	j := &journal{}
	eg, err := Capture([]CapturedNode{
		noteNode(j, "first"),
		noteNode(j, "second", 0),
		noteNode(j, "third", 1),
	})
	require.NoError(t, err)

	inst := eg.Instantiate(1)
	inst.Launch(s)
	require.NoError(t, s.Wait())
	assert.Equal(t, []string{"first", "second", "third"}, j.entries)
}

func TestExecInstanceFirstErrorAbortsRest(t *testing.T) {
	dev := New(2)
	defer dev.Close()
	s := dev.NewStream("test")

	boom := errors.New("node failed")
	downstreamRan := false
	eg, err := Capture([]CapturedNode{
		{Name: "bad", Params: NodeParams{Op: "explode", Run: func() error { return boom }}},
		{Name: "after", Params: NodeParams{Op: "noop", Run: func() error {
			downstreamRan = true
			return nil
		}}, Deps: []int{0}},
	})
	require.NoError(t, err)

	eg.Instantiate(2).Launch(s)
	waitErr := s.Wait()
	require.Error(t, waitErr)

	var execErr *ExecError
	require.ErrorAs(t, waitErr, &execErr)
	assert.Equal(t, "bad", execErr.Node)
	assert.Equal(t, "explode", execErr.Op)
	assert.ErrorIs(t, waitErr, boom)
	assert.False(t, downstreamRan, "nodes downstream of a failure must be skipped")
}

func TestUpdateNodeParams(t *testing.T) {
	dev := New(2)
	defer dev.Close()
	s := dev.NewStream("test")

	hits := map[string]int{}
	var mu sync.Mutex
	mark := func(name string) func() error {
		return func() error {
			mu.Lock()
			defer mu.Unlock()
			hits[name]++
			return nil
		}
	}

	eg, err := Capture([]CapturedNode{
		{Name: "n", Params: NodeParams{Op: "old", Run: mark("old")}},
	})
	require.NoError(t, err)
	inst := eg.Instantiate(1)

	inst.Launch(s)
	require.NoError(t, s.Wait())

	require.NoError(t, inst.UpdateNodeParams(0, NodeParams{Op: "new", Run: mark("new")}))
	inst.Launch(s)
	require.NoError(t, s.Wait())

	assert.Equal(t, 1, hits["old"])
	assert.Equal(t, 1, hits["new"])

	assert.ErrorIs(t, inst.UpdateNodeParams(5, NodeParams{Op: "x", Run: mark("x")}), ErrInvalidArgument)
	assert.ErrorIs(t, inst.UpdateNodeParams(0, NodeParams{Op: "x"}), ErrInvalidArgument)
}

func TestEmptyGraphLaunches(t *testing.T) {
	dev := New(1)
	defer dev.Close()
	s := dev.NewStream("test")

	eg, err := Capture(nil)
	require.NoError(t, err)
	assert.Zero(t, eg.Len())

	eg.Instantiate(0).Launch(s)
	require.NoError(t, s.Wait())
}
