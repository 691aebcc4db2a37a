// SPDX-License-Identifier: MIT

// Package transport moves published spectra out of the process: a WebSocket
// push endpoint, a periodic debug reporter and, in transport/udp, a datagram
// publisher. Consumers that poll run on a Poller, away from the audio
// callback.
package transport

import (
	"sync"
	"time"

	applog "fftplot/internal/log"
)

// Poller calls a function at a fixed interval on its own goroutine until
// stopped. Start and Stop may be called repeatedly.
type Poller struct {
	log      applog.Component // Tagged with the poller name.
	interval time.Duration
	tick     func()

	ticker   *time.Ticker   // Ticker driving tick; nil while stopped.
	doneChan chan struct{}  // Closed to stop the goroutine.
	wg       sync.WaitGroup // Waits for the goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.
}

// NewPoller returns a stopped poller. A non-positive interval defaults to
// 16ms (~60Hz).
func NewPoller(name string, interval time.Duration, tick func()) *Poller {
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Component(name).Warnf("non-positive interval, polling every %s", interval)
	}
	return &Poller{log: applog.Component(name), interval: interval, tick: tick}
}

// Start launches the polling goroutine. It is a no-op while running.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.log.Warnf("already polling")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})

	// Capture locals so the goroutine never reads p.ticker or p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Debugf("polling every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.tick()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it to exit. It is a no-op while
// stopped.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debugf("stopped polling")
	return nil
}

// Running reports whether the goroutine is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}

// Interval returns the polling interval.
func (p *Poller) Interval() time.Duration { return p.interval }
