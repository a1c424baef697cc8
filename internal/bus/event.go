package bus

import "time"

// Event represents an event published on the bus. Payload is typed per Kind.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
