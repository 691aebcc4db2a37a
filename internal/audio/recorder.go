// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	recordBitDepth = 16
	recordFormat   = 1 // PCM
)

var errAlreadyRecording = errors.New("already recording")

// Recorder writes every analysed window, before tapering, to a 16-bit mono
// WAV file. It is attached to the engine as an analysis.PCMObserver and so
// runs beside the transform, never on the audio callback in async mode.
//
// Windows the engine drops while its worker is busy (Stats.Dropped) are never
// observed, so after an overrun the file joins windows that were not
// contiguous in the input. Compare Windows with Stats.Cycles to detect gaps.
type Recorder struct {
	sampleRate int

	isRecording atomic.Bool // Fast path check for ObservePCM.
	windows     atomic.Uint64

	mu         sync.Mutex // Protects the file, encoder and buffer.
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion.
}

// NewRecorder sizes the conversion buffer for pcmLength windows.
func NewRecorder(sampleRate, pcmLength int) *Recorder {
	return &Recorder{
		sampleRate: sampleRate,
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, pcmLength),
			SourceBitDepth: recordBitDepth,
		},
	}
}

// StartRecording creates filename and begins recording into it.
func (r *Recorder) StartRecording(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return errAlreadyRecording
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, recordBitDepth, 1, recordFormat)
	r.windows.Store(0)

	r.isRecording.Store(true)
	logger.Infof("recording analysed windows to %s", filename)
	return nil
}

// StartInDir records into a timestamped file inside dir, creating dir if
// needed, and returns the file name.
func (r *Recorder) StartInDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	name := filepath.Join(dir, "fftplot-"+time.Now().Format("20060102-150405")+".wav")
	return name, r.StartRecording(name)
}

// ObservePCM appends window to the recording. Samples outside [-1, 1] are
// clipped. It is a no-op while not recording.
func (r *Recorder) ObservePCM(window []float64) error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder == nil {
		return nil
	}
	if len(window) > cap(r.sampleBuf.Data) {
		r.sampleBuf.Data = make([]int, len(window))
	}
	data := r.sampleBuf.Data[:len(window)]
	for i, v := range window {
		data[i] = int(math.Round(max(-1, min(1, v)) * math.MaxInt16))
	}
	r.sampleBuf.Data = data

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	r.windows.Add(1)
	return nil
}

// StopRecording finalises the WAV header and closes the file.
func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording.Load() {
		return nil
	}
	r.isRecording.Store(false)

	var errs []error
	if r.wavEncoder != nil {
		errs = append(errs, r.wavEncoder.Close())
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		errs = append(errs, r.outputFile.Close())
		r.outputFile = nil
	}

	logger.Infof("recording stopped after %d windows", r.windows.Load())
	return errors.Join(errs...)
}

// Recording reports whether a file is open.
func (r *Recorder) Recording() bool {
	return r.isRecording.Load()
}

// Windows returns how many windows the current or last recording holds.
func (r *Recorder) Windows() uint64 {
	return r.windows.Load()
}

// Close stops any active recording.
func (r *Recorder) Close() error {
	return r.StopRecording()
}
