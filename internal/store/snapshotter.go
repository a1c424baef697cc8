package store

import (
	"context"
	"strconv"
	"time"

	"github.com/matheus3301/chatmirror/internal/state"
	"go.uber.org/zap"
)

// Snapshotter periodically saves the chat state of one session.
type Snapshotter struct {
	db       *DB
	store    *state.Store
	session  string
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSnapshotter creates a snapshotter. A zero interval saves only on Stop.
func NewSnapshotter(db *DB, st *state.Store, session string, interval time.Duration, logger *zap.Logger) *Snapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshotter{db: db, store: st, session: session, interval: interval, logger: logger}
}

// Restore loads the latest snapshot for userID (any user when empty) into
// the store. It reports whether a snapshot was found.
func (s *Snapshotter) Restore(userID string) (bool, error) {
	snap, info, err := s.db.LoadSnapshot(s.session, userID)
	if err != nil || snap == nil {
		return false, err
	}
	Restore(s.store, *snap)
	if err := s.db.SetCheckpoint(CheckpointLastRestore, strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		s.logger.Warn("failed to record restore checkpoint", zap.Error(err))
	}
	s.logger.Info("chat state restored",
		zap.String("user_id", info.UserID),
		zap.Time("saved_at", info.SavedAt),
		zap.Int("conversations", info.Conversations),
		zap.Int("messages", info.Messages))
	return true, nil
}

// Start begins periodic saving.
func (s *Snapshotter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the loop and saves a final snapshot.
func (s *Snapshotter) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if err := s.SaveNow(); err != nil {
		s.logger.Error("failed to save final snapshot", zap.Error(err))
	}
}

func (s *Snapshotter) loop(ctx context.Context) {
	defer close(s.done)
	if s.interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SaveNow(); err != nil {
				s.logger.Error("failed to save snapshot", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// SaveNow saves the current state. A state without a user is not saved.
func (s *Snapshotter) SaveNow() error {
	snap := s.store.Snapshot()
	if snap.CurrentUserID == "" {
		return nil
	}
	info, err := s.db.SaveSnapshot(s.session, snap)
	if err != nil {
		return err
	}
	if err := s.db.SetCheckpoint(CheckpointLastSnapshot, strconv.FormatInt(info.SavedAt.UnixMilli(), 10)); err != nil {
		return err
	}
	s.logger.Debug("snapshot saved",
		zap.Int("conversations", info.Conversations), zap.Int("messages", info.Messages))
	return nil
}
