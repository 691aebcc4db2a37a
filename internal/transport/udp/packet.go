// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"

	"fftplot/internal/config"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Bin Width         | float32        | 4            | Hz between bins         |
| Magnitudes        | []float32      | N * 4        | dB, bin 0 first         |
+-----------------------------------------------------------------------------+

Bin i is centred on i * BinWidth Hz.
*/

// HeaderSize is the byte length of the fixed packet header.
const HeaderSize = config.UDPHeaderBytes

// Packet is a decoded spectrum datagram.
type Packet struct {
	Seq        uint32
	Timestamp  int64
	BinWidth   float32
	Magnitudes []float32
}

// Frequency returns the centre frequency of bin i.
func (p Packet) Frequency(i int) float64 {
	return float64(i) * float64(p.BinWidth)
}

// appendPacket encodes the header and magnitudes onto dst.
func appendPacket(dst []byte, seq uint32, timestamp int64, binWidth float32, magnitudes []float64) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(magnitudes)))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(binWidth))
	for _, v := range magnitudes {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodePacket parses a datagram produced by Publisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("udp packet too short: %d bytes", len(b))
	}

	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
		BinWidth:  math.Float32frombits(binary.BigEndian.Uint32(b[14:18])),
	}
	count := int(binary.BigEndian.Uint16(b[12:14]))
	payload := b[HeaderSize:]
	if len(payload) != 4*count {
		return Packet{}, fmt.Errorf("udp packet declares %d magnitudes but carries %d bytes", count, len(payload))
	}

	p.Magnitudes = make([]float32, count)
	for i := range p.Magnitudes {
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return p, nil
}
