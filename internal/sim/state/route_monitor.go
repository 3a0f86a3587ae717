package state

import "sync"

// DefaultMonitorWindow is the number of samples averaged before the monitor
// starts over.
const DefaultMonitorWindow = 5000

// RouteMonitor keeps a running average of route quality for one endpoint
// pair.
type RouteMonitor struct {
	mu sync.Mutex

	window  int
	start   string
	goal    string
	sum     int64
	samples int
}

// NewRouteMonitor returns a monitor averaging up to window samples. A
// non-positive window selects DefaultMonitorWindow.
func NewRouteMonitor(window int) *RouteMonitor {
	if window <= 0 {
		window = DefaultMonitorWindow
	}
	return &RouteMonitor{window: window}
}

// Record adds one quality sample for the start/goal pair and returns the
// average including it. A different pair, or a full window, discards the
// previous samples.
func (m *RouteMonitor) Record(start, goal string, quality int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if start != m.start || goal != m.goal {
		m.resetLocked()
		m.start, m.goal = start, goal
	}
	m.sum += int64(quality)
	m.samples++
	avg := float64(m.sum) / float64(m.samples)
	if m.samples > m.window {
		m.resetLocked()
	}
	return avg
}

// Average returns the current average, or 0 with no samples.
func (m *RouteMonitor) Average() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == 0 {
		return 0
	}
	return float64(m.sum) / float64(m.samples)
}

// Samples returns how many samples the current average covers.
func (m *RouteMonitor) Samples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

func (m *RouteMonitor) resetLocked() {
	m.sum = 0
	m.samples = 0
}
