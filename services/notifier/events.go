package notifier

import (
	"sync"
	"time"
)

type EventType string

const (
	EventCircuitBreakerOpen      EventType = "circuit_breaker_open"
	EventCircuitBreakerRecovered EventType = "circuit_breaker_recovered"
	EventServerStarted           EventType = "server_started"
	EventServerStartupFailed     EventType = "server_startup_failed"
	EventSourceUnreachable       EventType = "source_unreachable"
	EventSourceRecovered         EventType = "source_recovered"
	EventTrendingUpdated         EventType = "trending_updated"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

var severities = map[EventType]Severity{
	EventCircuitBreakerOpen:      SeverityCritical,
	EventServerStartupFailed:     SeverityCritical,
	EventSourceUnreachable:       SeverityCritical,
	EventCircuitBreakerRecovered: SeverityInfo,
	EventServerStarted:           SeverityInfo,
	EventSourceRecovered:         SeverityInfo,
	EventTrendingUpdated:         SeverityInfo,
}

// Event is something operators may want to hear about. Source names the
// breaker, upstream or startup component the event concerns; the remaining
// fields are filled only by the event types that use them.
type Event struct {
	Type      EventType
	Severity  Severity
	Source    string
	Timestamp time.Time

	Failures     int
	Cooldown     time.Duration
	Err          string
	Port         string
	Capabilities []string
	Count        int
}

// cooldownKey groups alerts so that one flapping source does not silence another
func (e *Event) cooldownKey() string {
	return string(e.Type) + ":" + e.Source
}

type EventHandler func(event *Event)

// EventBus fans events out to subscribers, each call on its own goroutine
type EventBus struct {
	mu       sync.RWMutex
	byType   map[EventType][]EventHandler
	wildcard []EventHandler
}

var (
	globalBus *EventBus
	busOnce   sync.Once
)

func NewEventBus() *EventBus {
	return &EventBus{byType: make(map[EventType][]EventHandler)}
}

// GetEventBus returns the process-wide bus used by the Publish helpers
func GetEventBus() *EventBus {
	busOnce.Do(func() { globalBus = NewEventBus() })
	return globalBus
}

func (b *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], handler)
	b.mu.Unlock()
}

func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	b.wildcard = append(b.wildcard, handler)
	b.mu.Unlock()
}

// Publish stamps the event's severity and time if unset and delivers it
func (b *EventBus) Publish(event *Event) {
	if event.Severity == "" {
		event.Severity = severities[event.Type]
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.byType[event.Type])+len(b.wildcard))
	handlers = append(handlers, b.byType[event.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(event)
	}
}

func PublishCircuitBreakerOpen(name string, failures int, cooldown time.Duration) {
	GetEventBus().Publish(&Event{Type: EventCircuitBreakerOpen, Source: name, Failures: failures, Cooldown: cooldown})
}

func PublishCircuitBreakerRecovered(name string) {
	GetEventBus().Publish(&Event{Type: EventCircuitBreakerRecovered, Source: name})
}

func PublishServerStarted(port string, capabilities []string) {
	GetEventBus().Publish(&Event{Type: EventServerStarted, Source: "http", Port: port, Capabilities: capabilities})
}

// PublishServerStartupFailed reports a component that could not come up
func PublishServerStartupFailed(component string, err error) {
	GetEventBus().Publish(&Event{Type: EventServerStartupFailed, Source: component, Err: errString(err)})
}

// PublishSourceUnreachable reports an upstream that failed several probes in a row
func PublishSourceUnreachable(name string, failures int, err error) {
	GetEventBus().Publish(&Event{Type: EventSourceUnreachable, Source: name, Failures: failures, Err: errString(err)})
}

func PublishSourceRecovered(name string) {
	GetEventBus().Publish(&Event{Type: EventSourceRecovered, Source: name})
}

func PublishTrendingUpdated(count int) {
	GetEventBus().Publish(&Event{Type: EventTrendingUpdated, Source: "trending", Count: count})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
