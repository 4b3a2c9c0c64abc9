package command

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatency = int64(time.Microsecond)
	maxLatency = int64(time.Hour)
)

// Metrics records per-command latency and outcome counts.
type Metrics struct {
	mu       sync.Mutex
	commands map[string]*commandMetrics
}

type commandMetrics struct {
	hist      *hdrhistogram.Histogram
	successes int64
	failures  int64
}

// DurationStats summarizes recorded latencies.
type DurationStats struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P99 time.Duration `json:"p99"`
}

// CommandStats is the snapshot of a single command.
type CommandStats struct {
	Command      string        `json:"command"`
	Count        int64         `json:"count"`
	SuccessCount int64         `json:"success_count"`
	FailureCount int64         `json:"failure_count"`
	Duration     DurationStats `json:"duration"`
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{commands: make(map[string]*commandMetrics)}
}

// Record adds one invocation of command.
func (m *Metrics) Record(command string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cm, ok := m.commands[command]
	if !ok {
		cm = &commandMetrics{hist: hdrhistogram.New(minLatency, maxLatency, 3)}
		m.commands[command] = cm
	}

	v := int64(d)
	if v < minLatency {
		v = minLatency
	}
	if v > maxLatency {
		v = maxLatency
	}
	_ = cm.hist.RecordValue(v)

	if success {
		cm.successes++
	} else {
		cm.failures++
	}
}

// Snapshot returns the stats of every recorded command, sorted by name.
func (m *Metrics) Snapshot() []CommandStats {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]CommandStats, 0, len(m.commands))
	for name, cm := range m.commands {
		stats = append(stats, CommandStats{
			Command:      name,
			Count:        cm.hist.TotalCount(),
			SuccessCount: cm.successes,
			FailureCount: cm.failures,
			Duration: DurationStats{
				Min: time.Duration(cm.hist.Min()),
				Max: time.Duration(cm.hist.Max()),
				Avg: time.Duration(cm.hist.Mean()),
				P50: time.Duration(cm.hist.ValueAtQuantile(50)),
				P90: time.Duration(cm.hist.ValueAtQuantile(90)),
				P99: time.Duration(cm.hist.ValueAtQuantile(99)),
			},
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Command < stats[j].Command })
	return stats
}

// Get returns the stats of command.
func (m *Metrics) Get(command string) (CommandStats, bool) {
	for _, s := range m.Snapshot() {
		if s.Command == command {
			return s, true
		}
	}
	return CommandStats{}, false
}

// Reset drops all recorded data.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = make(map[string]*commandMetrics)
}
