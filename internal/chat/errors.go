package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrUnroutableMessage is returned for a message that has no conversation
	// id and carries neither a sender/recipient pair nor a group id.
	ErrUnroutableMessage = errors.New("message has no conversation id and no derivable identity")
	// ErrInvalidTypingTarget is returned for a typing event addressed to
	// neither or both of a recipient and a group.
	ErrInvalidTypingTarget = errors.New("typing event must target exactly one of recipientId or groupId")
	// ErrMissingUser is returned when a payload lacks the acting user id.
	ErrMissingUser = errors.New("missing user id")
	// ErrMissingMessageID is returned when a payload lacks the message id it refers to.
	ErrMissingMessageID = errors.New("missing message id")
)

// Failure is the failure payload of a remote operation as recorded in state.
type Failure struct {
	Error  string `json:"error"`
	Action string `json:"action"`
	Status int    `json:"status,omitempty"`
}

// RemoteError is returned by transports when the server rejected a call.
type RemoteError struct {
	Message string
	Action  string
	Status  int
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote error (status %d): %s", e.Status, e.Message)
	}
	return "remote error: " + e.Message
}

// FailureFrom converts err into a Failure. fallback is used when err carries
// no human-readable message of its own.
func FailureFrom(err error, action, fallback string) Failure {
	f := Failure{Error: fallback, Action: action}
	var re *RemoteError
	if errors.As(err, &re) {
		if re.Message != "" {
			f.Error = re.Message
		}
		if re.Action != "" {
			f.Action = re.Action
		}
		f.Status = re.Status
	}
	return f
}
