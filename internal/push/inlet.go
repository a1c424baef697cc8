// Package push receives push events and hands them to the engine through the
// bus. Source keeps a websocket to the chat server; Inlet is the shared
// decode-and-publish step also used for events injected over the local API.
package push

import (
	"time"

	"github.com/matheus3301/chatmirror/internal/bus"
	"github.com/matheus3301/chatmirror/internal/events"
	"github.com/matheus3301/chatmirror/internal/metrics"
	"go.uber.org/zap"
)

// Inlet validates raw envelopes and publishes them for the engine.
type Inlet struct {
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewInlet creates an inlet publishing on b.
func NewInlet(b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Inlet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inlet{bus: b, metrics: m, logger: logger}
}

// Deliver decodes one JSON envelope and publishes it. Malformed envelopes are
// counted, logged and returned as errors; nothing reaches the engine.
func (in *Inlet) Deliver(data []byte) (events.Event, error) {
	ev, err := events.Decode(data)
	if err != nil {
		in.metrics.EventDropped(metrics.ReasonInvalid)
		in.logger.Warn("dropping malformed push event", zap.Error(err))
		return nil, err
	}
	in.Publish(ev)
	return ev, nil
}

// Publish hands an already validated event to the engine.
func (in *Inlet) Publish(ev events.Event) {
	in.bus.Publish(bus.Event{Kind: events.BusKind(ev), Timestamp: time.Now(), Payload: ev})
}
