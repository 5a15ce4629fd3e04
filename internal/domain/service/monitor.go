package service

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/pkg/ring"
)

// CallSample is one recorded provider attempt.
type CallSample struct {
	At        time.Time
	Latency   time.Duration
	Success   bool
	ErrorType model.ErrorType
}

type ProviderStats struct {
	ProviderID string
	Samples    int
	Failures   int
	ErrorRate  float64
	Mean       time.Duration
	P50        time.Duration
	P95        time.Duration
}

// Monitor keeps the last N call samples per provider.
type Monitor struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*ring.Buffer[CallSample]
}

func NewMonitor(capacity int) *Monitor {
	return &Monitor{
		capacity: capacity,
		series:   make(map[string]*ring.Buffer[CallSample]),
	}
}

func (m *Monitor) Record(providerID string, s CallSample) {
	m.mu.RLock()
	buf, ok := m.series[providerID]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if buf, ok = m.series[providerID]; !ok {
			buf = ring.New[CallSample](m.capacity)
			m.series[providerID] = buf
		}
		m.mu.Unlock()
	}
	buf.Push(s)
}

// Providers returns the providers with recorded samples, sorted.
func (m *Monitor) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.series))
	for id := range m.series {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Monitor) Stats(providerID string) ProviderStats {
	stats := ProviderStats{ProviderID: providerID}
	m.mu.RLock()
	buf, ok := m.series[providerID]
	m.mu.RUnlock()
	if !ok {
		return stats
	}

	samples := buf.Snapshot()
	if len(samples) == 0 {
		return stats
	}
	latencies := make([]time.Duration, len(samples))
	var total time.Duration
	for i, s := range samples {
		latencies[i] = s.Latency
		total += s.Latency
		if !s.Success {
			stats.Failures++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	stats.Samples = len(samples)
	stats.ErrorRate = float64(stats.Failures) / float64(stats.Samples) * 100
	stats.Mean = total / time.Duration(len(samples))
	stats.P50 = percentile(latencies, 50)
	stats.P95 = percentile(latencies, 95)
	return stats
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
