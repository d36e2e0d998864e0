package device

import (
	"fmt"
	"sync"
)

// pool is a fixed set of worker goroutines that execute kernel chunks.
// Kernels are leaf closures: they never submit further work to the pool,
// so a shared queue cannot deadlock on nesting.
type pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newPool(workers int) *pool {
	p := &pool{
		jobs: make(chan func(), workers*4),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// close stops the workers after the queued jobs drain.
func (p *pool) close() {
	close(p.jobs)
	p.wg.Wait()
}

// forEach runs fn for every index in [0, count), split into chunks of at
// most grain indices, and blocks until all chunks finish. A panic inside fn
// (for example a viewer bounds violation) is recovered and reported as an
// error; remaining chunks still run to completion so the pool stays usable.
func (p *pool) forEach(count, grain int, fn func(i int)) error {
	if count <= 0 {
		return nil
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for begin := 0; begin < count; begin += grain {
		end := begin + grain
		if end > count {
			end = count
		}
		wg.Add(1)
		b, e := begin, end
		p.jobs <- func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("kernel panic: %v", r)
					}
					mu.Unlock()
				}
			}()
			for i := b; i < e; i++ {
				fn(i)
			}
		}
	}
	wg.Wait()
	return firstErr
}
