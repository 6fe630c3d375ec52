package walletdb

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/ticker"
)

// Flusher periodically flushes an environment, closing database files that
// no batch uses and writing a checkpoint.
type Flusher struct {
	started atomic.Bool
	stopped atomic.Bool

	env    *Environment
	ticker ticker.Ticker

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewFlusher creates a flusher that flushes env on every tick of t.
func NewFlusher(env *Environment, t ticker.Ticker) *Flusher {
	return &Flusher{
		env:    env,
		ticker: t,
		quit:   make(chan struct{}),
	}
}

// Start launches the flush loop.
func (f *Flusher) Start() error {
	if !f.started.CompareAndSwap(false, true) {
		return errors.New("flusher already started")
	}

	log.Debugf("Starting flusher for %v", f.env.Directory())

	f.ticker.Resume()

	f.wg.Add(1)
	go f.flushLoop()

	return nil
}

// Stop signals the flush loop to exit and waits for it.
func (f *Flusher) Stop() error {
	if !f.stopped.CompareAndSwap(false, true) {
		return errors.New("flusher already stopped")
	}

	log.Debugf("Stopping flusher for %v", f.env.Directory())

	close(f.quit)
	f.wg.Wait()
	f.ticker.Stop()

	return nil
}

func (f *Flusher) flushLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ticker.Ticks():
			if err := f.env.Flush(false); err != nil {
				log.Errorf("Unable to flush %v: %v",
					f.env.Directory(), err)
			}

		case <-f.quit:
			return
		}
	}
}
