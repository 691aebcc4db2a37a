// SPDX-License-Identifier: MIT
package analysis

import "sync/atomic"

// handoff moves completed windows from the audio callback to a worker
// goroutine without blocking the callback.
//
// Two window buffers alternate. The callback always fills buffers[active];
// the other buffer belongs to the worker while busy is set. On completion the
// callback hands the full buffer over through a single-slot channel and
// continues in the other buffer, unless the worker is still busy, in which
// case the window is dropped and the same buffer is refilled.
type handoff struct {
	buffers [2][]float64
	active  int // Index of the buffer the callback is filling.

	busy  atomic.Bool   // Worker owns buffers[1-active].
	ready chan int      // Single slot carrying the index of a full buffer.
	done  chan struct{} // Closed when the worker exits.

	analyze func(window []float64)
}

func newHandoff(pcmLength int, analyze func(window []float64)) *handoff {
	return &handoff{
		buffers: [2][]float64{
			make([]float64, pcmLength),
			make([]float64, pcmLength),
		},
		ready:   make(chan int, 1),
		done:    make(chan struct{}),
		analyze: analyze,
	}
}

// start launches the worker.
func (h *handoff) start() {
	go func() {
		defer close(h.done)
		for idx := range h.ready {
			h.analyze(h.buffers[idx])
			h.busy.Store(false)
		}
	}()
}

// current returns the buffer the callback should fill.
func (h *handoff) current() []float64 {
	return h.buffers[h.active]
}

// complete is called by the callback with buffers[active] full. It returns
// the buffer to fill next and whether the full window reached the worker.
func (h *handoff) complete() ([]float64, bool) {
	if h.busy.Load() {
		return h.buffers[h.active], false
	}

	full := h.active
	h.busy.Store(true)
	select {
	case h.ready <- full:
	default:
		// Unreachable while busy is clear: the worker has already received the
		// previous index before clearing it.
		h.busy.Store(false)
		return h.buffers[h.active], false
	}

	h.active = 1 - full
	return h.buffers[h.active], true
}

// stop closes the slot and waits for the worker to finish its current window.
// The callback must no longer be running.
func (h *handoff) stop() {
	close(h.ready)
	<-h.done
}
