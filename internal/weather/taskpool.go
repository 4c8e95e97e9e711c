package weather

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// taskPool is the admission gate for fetch tasks: at most size tasks run at
// once and Submit blocks until a slot frees up. A slot is returned as soon as
// the submitted function returns, whatever path it returns by.
type taskPool struct {
	pool *ants.Pool
}

func newTaskPool(size int) (*taskPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: concurrency limit must be positive (got %d)", ErrInvalidInput, size)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create task pool: %w", err)
	}
	return &taskPool{pool: pool}, nil
}

func (p *taskPool) Submit(task func()) error {
	return p.pool.Submit(task)
}

func (p *taskPool) Release() {
	p.pool.Release()
}
