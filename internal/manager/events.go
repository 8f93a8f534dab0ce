package manager

import "time"

// Lifecycle event names. Fields carry event-specific details such as the
// endpoint, the probe error or the number of requests still draining.
const (
	EventModelRegistering    = "model_registering"
	EventModelReady          = "model_ready"
	EventModelRegisterFailed = "model_register_failed"
	EventModelDraining       = "model_draining"
	EventModelUnloaded       = "model_unloaded"
	EventAdmissionRejected   = "admission_rejected"
)

// Event is one registry or admission transition.
type Event struct {
	Name   string
	Model  string
	Time   time.Time
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// emit logs the event and hands it to the publisher.
func (m *Manager) emit(name, model string, fields map[string]any) {
	ev := m.log.Info().Str("event", name).Str("model", model)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("manager event")
	m.publisher.Publish(Event{Name: name, Model: model, Time: time.Now(), Fields: fields})
}
