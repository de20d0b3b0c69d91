// Package stability keeps a rolling window of grid measurements and the
// summary statistics used to qualify control-mode changes.
package stability

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindowSize covers 30s of samples at the 5s grid polling cadence.
const DefaultWindowSize = 6

// Window is a bounded sample buffer over grid frequency and voltage.
// Oldest samples are evicted once the capacity is reached.
type Window struct {
	mu   sync.Mutex
	size int
	freq []float64
	volt []float64
}

// NewWindow returns a window holding at most size samples. A non-positive
// size falls back to DefaultWindowSize.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{size: size}
}

// Add records one frequency/voltage sample, evicting the oldest if full.
func (w *Window) Add(frequency, voltage float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.freq) == w.size {
		w.freq = append(w.freq[:0], w.freq[1:]...)
		w.volt = append(w.volt[:0], w.volt[1:]...)
	}
	w.freq = append(w.freq, frequency)
	w.volt = append(w.volt, voltage)
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.freq)
}

// FrequencyStats returns the mean and standard deviation of the window.
func (w *Window) FrequencyStats() (mean, stddev float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sampleStats(w.freq)
}

// VoltageStats returns the mean and standard deviation of the window.
func (w *Window) VoltageStats() (mean, stddev float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sampleStats(w.volt)
}

// Settled reports whether the window is full and both measurements are calm
// enough, i.e. their standard deviation stays below the given bounds.
func (w *Window) Settled(maxFreqStd, maxVoltStd float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.freq) < w.size {
		return false
	}
	_, fs := sampleStats(w.freq)
	_, vs := sampleStats(w.volt)
	return fs <= maxFreqStd && vs <= maxVoltStd
}

// Reset discards all samples.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.freq = w.freq[:0]
	w.volt = w.volt[:0]
}

func sampleStats(xs []float64) (mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		stddev = stat.StdDev(xs, nil)
	}
	return mean, stddev
}
