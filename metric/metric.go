// Package metric collects per-element processing counters on top of the
// standard expvar registry: chunks, samples, latency between steps and
// the accumulated signal duration.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flume-dsp/flume"
)

const elementsLabel = "flume.elements"

const (
	// ChunkCounter measures number of chunks.
	ChunkCounter = "Chunks"
	// SampleCounter measures number of samples.
	SampleCounter = "Samples"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "Latency"
	// DurationCounter counts the duration of processed signal.
	DurationCounter = "Duration"
)

var counters = []string{
	ChunkCounter,
	SampleCounter,
	LatencyCounter,
	DurationCounter,
}

// Metric implements flume.Metric over expvar counters. The zero value is
// ready to use; one Metric may serve multiple pipelines.
type Metric struct {
	mu       sync.Mutex
	elements map[string]*element
}

// New returns a new metric registry.
func New() *Metric {
	return &Metric{elements: make(map[string]*element)}
}

// Meter returns a measure closure for the named element.
func (m *Metric) Meter(name string, sampleRate int) flume.MeasureFunc {
	e := m.get(name)
	calledAt := time.Now()
	var (
		chunkFrames   int
		chunkDuration time.Duration
	)
	return func(frames int) {
		e.latency.set(time.Since(calledAt))
		e.chunks.Add(1)
		e.samples.Add(int64(frames))
		// recalculate chunk duration only when chunk size has changed
		if chunkFrames != frames {
			chunkFrames = frames
			chunkDuration = durationOf(sampleRate, frames)
		}
		e.duration.add(chunkDuration)
		calledAt = time.Now()
	}
}

// Get returns counter values for the named element.
func (m *Metric) Get(name string) map[string]string {
	values := make(map[string]string)
	for _, counter := range counters {
		if v := expvar.Get(key(name, counter)); v != nil {
			values[counter] = v.String()
		}
	}
	return values
}

func (m *Metric) get(name string) *element {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.elements == nil {
		m.elements = make(map[string]*element)
	}
	if e, ok := m.elements[name]; ok {
		return e
	}
	e := newElement(name)
	m.elements[name] = e
	return e
}

type element struct {
	chunks   *expvar.Int
	samples  *expvar.Int
	latency  *duration
	duration *duration
}

func newElement(name string) *element {
	return &element{
		chunks:   newInt(key(name, ChunkCounter)),
		samples:  newInt(key(name, SampleCounter)),
		latency:  newDuration(key(name, LatencyCounter)),
		duration: newDuration(key(name, DurationCounter)),
	}
}

// expvar panics on duplicate names, so re-registered elements reuse the
// published vars.
func newInt(name string) *expvar.Int {
	if v := expvar.Get(name); v != nil {
		if i, ok := v.(*expvar.Int); ok {
			return i
		}
	}
	return expvar.NewInt(name)
}

func newDuration(name string) *duration {
	if v := expvar.Get(name); v != nil {
		if d, ok := v.(*duration); ok {
			return d
		}
	}
	d := &duration{}
	expvar.Publish(name, d)
	return d
}

func key(element, counter string) string {
	return fmt.Sprintf("%s.%s.%s", elementsLabel, element, counter)
}

func durationOf(sampleRate, frames int) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
