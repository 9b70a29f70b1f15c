package notifier

import (
	"context"
	"karaokelover/logcolors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Probe checks one upstream and returns nil when it is healthy
type Probe func(ctx context.Context) error

// SourceCheck names a probe
type SourceCheck struct {
	Name  string
	Probe Probe
}

// MonitorConfig holds the configuration for the source monitor
type MonitorConfig struct {
	Sources          []SourceCheck
	FailureThreshold int           // Consecutive failures before publishing
	ProbeTimeout     time.Duration // Per-probe deadline
}

// SourceStatus is the last known state of a monitored source
type SourceStatus struct {
	Name        string    `json:"name"`
	Healthy     bool      `json:"healthy"`
	Failures    int       `json:"consecutive_failures"`
	LastError   string    `json:"last_error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	alerted     bool
}

// SourceMonitor periodically probes upstream sources and publishes
// unreachable and recovered events on threshold crossings
type SourceMonitor struct {
	config MonitorConfig
	state  map[string]*SourceStatus
	mu     sync.RWMutex
}

// NewSourceMonitor creates a new source monitor
func NewSourceMonitor(config MonitorConfig) *SourceMonitor {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 10 * time.Second
	}

	state := make(map[string]*SourceStatus, len(config.Sources))
	for _, src := range config.Sources {
		state[src.Name] = &SourceStatus{Name: src.Name, Healthy: true}
	}
	return &SourceMonitor{config: config, state: state}
}

// Check probes every source once
func (m *SourceMonitor) Check(ctx context.Context) {
	for _, src := range m.config.Sources {
		probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
		err := src.Probe(probeCtx)
		cancel()
		m.record(src.Name, err)
	}
}

func (m *SourceMonitor) record(name string, err error) {
	m.mu.Lock()
	status := m.state[name]
	status.LastChecked = time.Now()

	if err == nil {
		recovered := status.alerted
		status.Healthy = true
		status.Failures = 0
		status.LastError = ""
		status.alerted = false
		m.mu.Unlock()

		if recovered {
			log.Infof("%s %s recovered", logcolors.LogNotifier, name)
			PublishSourceRecovered(name)
		}
		return
	}

	status.Failures++
	status.Healthy = false
	status.LastError = err.Error()
	trip := !status.alerted && status.Failures >= m.config.FailureThreshold
	if trip {
		status.alerted = true
	}
	failures := status.Failures
	m.mu.Unlock()

	log.Warnf("%s %s health check failed (%d in a row): %v", logcolors.LogNotifier, name, failures, err)
	if trip {
		PublishSourceUnreachable(name, failures, err)
	}
}

// Status returns a copy of every source's last known state
func (m *SourceMonitor) Status() []SourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SourceStatus, 0, len(m.config.Sources))
	for _, src := range m.config.Sources {
		out = append(out, *m.state[src.Name])
	}
	return out
}

// Run checks immediately and then at every interval until ctx is done
func (m *SourceMonitor) Run(ctx context.Context, interval time.Duration) {
	log.Infof("%s Starting source monitor (sources: %d, interval: %v, threshold: %d)",
		logcolors.LogNotifier, len(m.config.Sources), interval, m.config.FailureThreshold)

	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
