package notifier

import (
	"fmt"
	"karaokelover/logcolors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultAlertCooldown is the minimum gap between two alerts for the same
// event type and source.
const DefaultAlertCooldown = 15 * time.Minute

type AlertConfig struct {
	Notifiers        []Notifier
	CooldownDuration time.Duration
}

// AlertHandler turns bus events into notifications, rate limited per source
type AlertHandler struct {
	notifiers []Notifier
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewAlertHandler(cfg AlertConfig) *AlertHandler {
	cooldown := cfg.CooldownDuration
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &AlertHandler{
		notifiers: cfg.Notifiers,
		cooldown:  cooldown,
		now:       time.Now,
		lastSent:  make(map[string]time.Time),
	}
}

// Start subscribes to bus, or to the global bus when bus is nil
func (h *AlertHandler) Start(bus *EventBus) {
	if bus == nil {
		bus = GetEventBus()
	}
	bus.SubscribeAll(h.HandleEvent)
	log.Infof("%s Alert handler started (cooldown: %v, notifiers: %d)",
		logcolors.LogNotifier, h.cooldown, len(h.notifiers))
}

func (h *AlertHandler) HandleEvent(event *Event) {
	subject, message := FormatAlert(event)
	if subject == "" {
		return
	}
	if !h.claim(event.cooldownKey()) {
		log.Debugf("%s %s for %q suppressed by cooldown", logcolors.LogNotifier, event.Type, event.Source)
		return
	}
	h.broadcast(subject, message)
}

// claim reports whether an alert for key may go out now and records it if so
func (h *AlertHandler) claim(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if last, ok := h.lastSent[key]; ok && now.Sub(last) < h.cooldown {
		return false
	}
	h.lastSent[key] = now
	return true
}

// ResetCooldown lets the next alert of eventType for source through immediately
func (h *AlertHandler) ResetCooldown(eventType EventType, source string) {
	h.mu.Lock()
	delete(h.lastSent, (&Event{Type: eventType, Source: source}).cooldownKey())
	h.mu.Unlock()
}

func (h *AlertHandler) broadcast(subject, message string) {
	if len(h.notifiers) == 0 {
		log.Warnf("%s No notifiers configured, dropping alert: %s", logcolors.LogNotifier, subject)
		return
	}

	delivered := 0
	for _, n := range h.notifiers {
		if err := n.Send(subject, message); err != nil {
			log.Errorf("%s Alert delivery failed: %v", logcolors.LogNotifier, err)
			continue
		}
		delivered++
	}
	log.Infof("%s %q delivered via %d/%d notifiers", logcolors.LogNotifier, subject, delivered, len(h.notifiers))
}

var severityIcons = map[Severity]string{
	SeverityCritical: "🚨 ",
	SeverityWarning:  "⚠️ ",
	SeverityInfo:     "ℹ️ ",
}

// FormatAlert renders an event as a notification subject and body.
// Event types with no alert text yield an empty subject.
func FormatAlert(event *Event) (subject, message string) {
	switch event.Type {
	case EventCircuitBreakerOpen:
		subject = "Circuit Breaker OPEN"
		message = fmt.Sprintf("The %s circuit breaker tripped after %d consecutive failures.\n\n"+
			"Karaoke search answers 503 for the next %v.\n\n"+
			"Action: check the YouTube Data API quota and key.",
			event.Source, event.Failures, event.Cooldown)

	case EventCircuitBreakerRecovered:
		subject = "Circuit Breaker Recovered"
		message = fmt.Sprintf("The %s circuit breaker closed again. Search is back to normal.", event.Source)

	case EventServerStartupFailed:
		subject = "Server Startup FAILED"
		message = fmt.Sprintf("Component: %s\nError: %s\n\nAction: check the logs.", event.Source, event.Err)

	case EventSourceUnreachable:
		subject = "Upstream Unreachable"
		message = fmt.Sprintf("%s failed %d health checks in a row.\n\nLast error: %s",
			event.Source, event.Failures, event.Err)

	case EventSourceRecovered:
		subject = "Upstream Recovered"
		message = fmt.Sprintf("%s is answering health checks again.", event.Source)

	case EventServerStarted:
		subject = "Server Started"
		message = fmt.Sprintf("Listening on port %s.", event.Port)
		if len(event.Capabilities) > 0 {
			message += "\n\nEnabled: " + strings.Join(event.Capabilities, ", ")
		}

	case EventTrendingUpdated:
		subject = "Trending Updated"
		message = fmt.Sprintf("The trending list now holds %d songs.", event.Count)

	default:
		return "", ""
	}

	severity := event.Severity
	if severity == "" {
		severity = severities[event.Type]
	}
	return severityIcons[severity] + subject, message
}
