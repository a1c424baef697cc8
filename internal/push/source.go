package push

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/matheus3301/chatmirror/internal/status"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	minBackoff   = 500 * time.Millisecond
	maxBackoff   = 30 * time.Second
	maxFrameSize = 1 << 20
)

// Source keeps a websocket to the push endpoint open, reconnecting with
// exponential backoff, and delivers every frame through an Inlet.
type Source struct {
	url    string
	token  string
	inlet  *Inlet
	status *status.Machine
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSource creates a push source for url.
func NewSource(url, token string, inlet *Inlet, sm *status.Machine, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		url:    url,
		token:  token,
		inlet:  inlet,
		status: sm,
		logger: logger,
	}
}

// Start connects in the background.
func (s *Source) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	if s.status.Current() == status.Closed {
		_ = s.status.Transition(status.Disconnected)
	}
	go s.run(ctx)
}

// Stop closes the connection and waits for the source to finish.
func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Source) run(ctx context.Context) {
	defer close(s.done)
	defer s.transition(status.Closed)

	backoff := minBackoff
	for {
		s.transition(status.Connecting)
		err := s.session(ctx, func() { backoff = minBackoff })
		if ctx.Err() != nil {
			return
		}

		var unauthorized errUnauthorized
		if errors.As(err, &unauthorized) {
			s.transition(status.Unauthorized)
		} else {
			s.transition(status.Reconnecting)
		}
		s.logger.Warn("push connection lost", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

type errUnauthorized struct{ status int }

func (e errUnauthorized) Error() string { return "push endpoint rejected credentials: " + http.StatusText(e.status) }

// session dials once and reads until the connection fails or ctx ends.
func (s *Source) session(ctx context.Context, connected func()) error {
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if s.token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+s.token)
	}
	conn, resp, err := websocket.Dial(ctx, s.url, opts)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return errUnauthorized{status: resp.StatusCode}
		}
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "client disconnect")
	conn.SetReadLimit(maxFrameSize)

	s.transition(status.Connected)
	s.logger.Info("push connected", zap.String("url", s.url))
	connected()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		// Malformed frames are dropped by the inlet; the link stays up.
		_, _ = s.inlet.Deliver(data)
	}
}

func (s *Source) transition(to status.State) {
	if err := s.status.Transition(to); err != nil {
		s.logger.Debug("push status unchanged", zap.Error(err))
	}
}
