package state

import (
	"time"

	"github.com/matheus3301/chatmirror/internal/chat"
)

// SetTyping applies a typing event. isTyping=true moves the key to typing
// (refreshing its start time if it already was), false removes it.
func (tx *Tx) SetTyping(e chat.TypingEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	key := e.Key()
	if !e.IsTyping {
		delete(tx.s.typing, key)
		return nil
	}
	if e.Since.IsZero() {
		e.Since = tx.s.now()
	}
	tx.s.typing[key] = e
	return nil
}

// ExpireTyping drops typers whose last typing event is older than cutoff and
// returns how many were dropped.
func (tx *Tx) ExpireTyping(cutoff time.Time) int {
	n := 0
	for k, e := range tx.s.typing {
		if e.Since.Before(cutoff) {
			delete(tx.s.typing, k)
			n++
		}
	}
	return n
}
