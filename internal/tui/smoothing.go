// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/harmonica"

// barSprings eases each column toward its latest level so bars rise and
// fall smoothly between spectra.
type barSprings struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newBarSprings(fps int, frequency, damping float64) *barSprings {
	return &barSprings{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *barSprings) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

// step advances column i one frame toward target and returns its position
// clamped to [0, 1].
func (s *barSprings) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return min(max(p, 0), 1)
}

// levels returns the current positions clamped to [0, 1].
func (s *barSprings) levels() []float64 {
	out := make([]float64, len(s.pos))
	for i, p := range s.pos {
		out[i] = min(max(p, 0), 1)
	}
	return out
}
