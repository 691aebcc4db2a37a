// SPDX-License-Identifier: MIT
package transport

import (
	"time"

	"fftplot/internal/analysis"
	applog "fftplot/internal/log"
)

// LoggingReporter polls a SpectrumProvider and logs the strongest bin of
// each new spectrum at debug level.
type LoggingReporter struct {
	provider analysis.SpectrumProvider
	poller   *Poller
	log      applog.Component

	magBuffer []float64
	lastSeq   uint64
}

// NewLoggingReporter creates a stopped reporter; call Start.
func NewLoggingReporter(provider analysis.SpectrumProvider, interval time.Duration) *LoggingReporter {
	r := &LoggingReporter{
		provider:  provider,
		log:       applog.Component("reporter"),
		magBuffer: make([]float64, provider.Bins()),
	}
	r.poller = NewPoller("reporter", interval, func() { r.report() })
	r.log.Infof("reporting spectrum peaks every %s", r.poller.Interval())
	return r
}

// Start begins reporting.
func (r *LoggingReporter) Start() { r.poller.Start() }

// Close stops reporting.
func (r *LoggingReporter) Close() error { return r.poller.Stop() }

// report logs the peak of the latest spectrum, if it is new. It returns the
// peak bin, or -1 when nothing was logged.
func (r *LoggingReporter) report() int {
	seq, err := r.provider.MagnitudesInto(r.magBuffer)
	if err != nil {
		r.log.Errorf("reading spectrum: %v", err)
		return -1
	}
	if seq == 0 || seq == r.lastSeq {
		return -1
	}
	r.lastSeq = seq

	peak := PeakBin(r.magBuffer)
	r.log.Debugf("spectrum %d peak %.1f Hz at %.1f dB",
		seq, r.provider.FrequencyForBin(peak), r.magBuffer[peak])
	return peak
}

// PeakBin returns the index of the largest magnitude, ignoring the DC bin
// when there is any other. It returns 0 for an empty slice.
func PeakBin(magnitudes []float64) int {
	if len(magnitudes) < 2 {
		return 0
	}
	peak := 1
	for i := 2; i < len(magnitudes); i++ {
		if magnitudes[i] > magnitudes[peak] {
			peak = i
		}
	}
	return peak
}
