package session

import (
	"context"
	"fmt"
	"time"
)

// Open loads persisted sessions and starts the autosave loop. Without a persister it is a no-op.
func (s *Store) Open(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	sessions, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, ps := range sessions {
		if err := s.Import(ctx, ps); err != nil {
			s.logger.Error("skip persisted session", "session_id", ps.SessionID, "error", err)
		}
	}
	s.dirty.Store(false)
	s.logger.Info("sessions loaded", "count", len(sessions))
	s.startOnce.Do(func() {
		go s.loop()
	})
	return nil
}

// Close stops the autosave loop and writes pending changes.
func (s *Store) Close(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	started := true
	s.startOnce.Do(func() { started = false })
	if started {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Flush(ctx)
}

// Flush saves all sessions when something changed since the last successful save.
// On failure the store stays dirty and memory is left as is.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil || !s.dirty.Swap(false) {
		return nil
	}
	sessions := s.ExportAll(ctx)
	if err := s.persister.Save(ctx, sessions); err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("save sessions: %w", err)
	}
	s.logger.Debug("sessions saved", "count", len(sessions))
	return nil
}

func (s *Store) markDirty() {
	s.dirty.Store(true)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Store) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.autosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-s.notify:
		case <-ticker.C:
		}
		if err := s.Flush(context.Background()); err != nil {
			s.logger.Error("autosave failed", "error", err)
		}
	}
}
