// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"time"

	"fftplot/internal/analysis"
	"fftplot/internal/config"
	"fftplot/internal/transport"
)

// UDPPublisher periodically reads the latest spectrum from a
// SpectrumProvider, packs it into the datagram layout described in
// packet.go and sends it with a UDPSender. Spectra already sent are not
// repeated.
type UDPPublisher struct {
	sender   *UDPSender
	provider analysis.SpectrumProvider
	poller   *transport.Poller

	sequenceNum uint32 // Per-packet counter.
	lastSeq     uint64 // Provider sequence of the last packet sent.
	binWidth    float32

	// Pre-allocated buffers so publishing never allocates.
	magBuffer []float64
	packet    []byte
}

// NewUDPPublisher creates a stopped publisher; call Start. A non-positive
// interval defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider analysis.SpectrumProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum provider cannot be nil")
	}

	bins := provider.Bins()
	if size := HeaderSize + 4*bins; size > config.MaxUDPDatagram {
		return nil, fmt.Errorf("UDPPublisher: %d bins need %d byte packets, limit %d", bins, size, config.MaxUDPDatagram)
	}

	p := &UDPPublisher{
		sender:    sender,
		provider:  provider,
		binWidth:  float32(provider.FrequencyForBin(1)),
		magBuffer: make([]float64, bins),
		packet:    make([]byte, 0, HeaderSize+4*bins),
	}
	p.poller = transport.NewPoller("udp", interval, p.publish)

	logger.Infof("publishing %[2]d bins to %[3]s every %[1]s",
		p.poller.Interval(), bins, sender.Target())
	return p, nil
}

// Start begins periodic publishing. Calling it while running is a no-op.
func (p *UDPPublisher) Start() { p.poller.Start() }

// Stop waits for the publishing goroutine to exit.
func (p *UDPPublisher) Stop() error { return p.poller.Stop() }

// publish sends the latest spectrum if it has not been sent yet.
func (p *UDPPublisher) publish() {
	packet, ok := p.buildPacket(time.Now())
	if !ok {
		return
	}
	if err := p.sender.Send(packet); err != nil {
		logger.Warnf("%v", err)
		return
	}
	logger.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(packet))
}

// buildPacket encodes the latest spectrum into the reusable packet buffer.
// It reports false when there is nothing new to send.
func (p *UDPPublisher) buildPacket(now time.Time) ([]byte, bool) {
	seq, err := p.provider.MagnitudesInto(p.magBuffer)
	if err != nil {
		logger.Errorf("reading spectrum: %v", err)
		return nil, false
	}
	if seq == 0 || seq == p.lastSeq {
		return nil, false
	}
	p.lastSeq = seq
	p.sequenceNum++

	p.packet = appendPacket(p.packet[:0], p.sequenceNum, now.UnixNano(), p.binWidth, p.magBuffer)
	return p.packet, true
}

// Close stops the publisher. The sender is owned by the caller.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
