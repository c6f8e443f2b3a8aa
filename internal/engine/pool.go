package engine

import (
	"golang.org/x/sync/errgroup"

	"github.com/armash/log-ingestor/internal/types"
)

// DefaultWorkers is used when no usable worker count is configured.
const DefaultWorkers = 4

// Source hands out records until it is exhausted.
type Source interface {
	Pop() (types.Record, bool)
}

// Writer receives every record a worker pops, tagged with the worker's id.
type Writer interface {
	Write(rec types.Record, worker int)
}

// ClampWorkers returns n, or 1 when n is less than 1.
func ClampWorkers(n int) int {
	return max(n, 1)
}

// Pool runs a fixed set of symmetric workers. Each worker pops from the
// shared Source and writes to the shared Writer until the Source is exhausted.
type Pool struct {
	size    int
	group   errgroup.Group
	onWrite func(worker int, rec types.Record)
}

// NewPool returns a pool of n workers; n is clamped to at least 1.
func NewPool(n int) *Pool {
	return &Pool{size: ClampWorkers(n)}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// OnWrite registers fn to run after each successful write. It must be set
// before Start and be safe for concurrent use.
func (p *Pool) OnWrite(fn func(worker int, rec types.Record)) *Pool {
	p.onWrite = fn
	return p
}

// Start launches the workers with ids 0 through Size()-1 and returns
// immediately.
func (p *Pool) Start(src Source, dst Writer) {
	for id := range p.size {
		p.group.Go(func() error {
			p.work(id, src, dst)
			return nil
		})
	}
}

// Wait blocks until every worker has observed an exhausted Source.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

func (p *Pool) work(id int, src Source, dst Writer) {
	for {
		rec, ok := src.Pop()
		if !ok {
			return
		}
		dst.Write(rec, id)
		if p.onWrite != nil {
			p.onWrite(id, rec)
		}
	}
}
