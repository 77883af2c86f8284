// Package querypool bounds how many historical event queries run at once,
// independent of how many connections are open, so a burst of REQs from
// many clients can't starve the SQLite read pool or crowd out the writer.
package querypool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"nostrelay.dev/nostr"
	"nostrelay.dev/store"
)

// Pool runs store.Query calls under a concurrency cap. A weighted
// semaphore enforces the cap; the errgroup supervises the worker
// goroutines it spawns so Close can wait for everything already admitted
// to actually finish.
type Pool struct {
	dbPath string
	sem    *semaphore.Weighted
	g      *errgroup.Group
}

// New returns a Pool that allows at most maxConcurrent queries against
// dbPath to run at the same time.
func New(dbPath string, maxConcurrent int64) *Pool {
	return &Pool{
		dbPath: dbPath,
		sem:    semaphore.NewWeighted(maxConcurrent),
		g:      &errgroup.Group{},
	}
}

// Run blocks until a pool slot is free or ctx is done, then runs sub's
// historical query to completion before returning. The semaphore bounds
// how many queries execute at once; the query itself runs on an
// errgroup-supervised goroutine, so Close can wait out anything already
// admitted. Once a query is admitted, Run waits for it to finish even if
// ctx is cancelled; ctx only limits the wait for a slot. Callers must invoke
// Run from its own goroutine rather than an event loop, since it blocks
// for as long as the query takes.
func (p *Pool) Run(ctx context.Context, sub *nostr.Subscription, results chan<- store.QueryResult, abandon <-chan struct{}) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	done := make(chan struct{})
	p.g.Go(func() error {
		defer close(done)
		defer p.sem.Release(1)
		store.Query(p.dbPath, sub, results, abandon)
		return nil
	})
	<-done
	return nil
}

// Close waits for every query admitted before it was called to finish.
func (p *Pool) Close() error {
	return p.g.Wait()
}
