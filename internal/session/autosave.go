package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
)

// SaveProgress pushes the current answers and remaining time to the
// backend. A call joins a save already in flight only when that save's
// snapshot includes every edit made before the call; otherwise it sends a
// fresh one once the flight lands. A failure is reported to the notifier and
// returned; it never blocks answering.
func (s *Session) SaveProgress(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case !s.loaded:
		s.mu.Unlock()
		return ErrNotLoaded
	case s.state == StateSubmitted:
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	want := s.version
	s.mu.Unlock()

	for {
		saved, err, _ := s.saves.Do(s.examID, s.saveSnapshot(ctx))
		if err != nil {
			if errors.Is(err, ErrAlreadySubmitted) {
				return err
			}
			return fmt.Errorf("save progress: %w", err)
		}
		if saved.(uint64) >= want {
			return nil
		}
	}
}

// saveSnapshot returns a flight that sends the answers as they are when it
// starts and yields the answer version it sent.
func (s *Session) saveSnapshot(ctx context.Context) func() (any, error) {
	return func() (any, error) {
		s.mu.Lock()
		if s.state == StateSubmitted {
			s.mu.Unlock()
			return nil, ErrAlreadySubmitted
		}
		version := s.version
		submission := s.submissionLocked()
		s.mu.Unlock()

		if err := s.api.SaveProgress(ctx, submission); err != nil {
			s.logger.Warn().Err(err).Msg("save progress failed")
			s.notify(LevelError, fmt.Sprintf("Could not save progress: %v", err), err)
			return nil, err
		}
		s.logger.Debug().
			Int("answers", len(submission.Answers)).
			Int("remaining_sec", submission.RemainingTime).
			Uint64("version", version).
			Msg("progress saved")
		return version, nil
	}
}

// SaveProgressAsync runs SaveProgress in the background.
func (s *Session) SaveProgressAsync(ctx context.Context) *Task {
	return startTask(func() error {
		return s.SaveProgress(ctx)
	})
}

func (s *Session) runAutosave(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.submitted:
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			if s.Submitting() {
				continue
			}
			_ = s.SaveProgress(ctx)
		}
	}
}
