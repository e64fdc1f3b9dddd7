package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
)

// Submit sends the final answers. Only one submission may be in flight; a
// failed attempt leaves the session in progress and a retry reuses the same
// idempotency key.
func (s *Session) Submit(ctx context.Context) (exam.Result, error) {
	s.mu.Lock()
	switch {
	case !s.loaded:
		s.mu.Unlock()
		return exam.Result{}, ErrNotLoaded
	case s.state == StateSubmitted:
		s.mu.Unlock()
		return exam.Result{}, ErrAlreadySubmitted
	case s.submitting:
		s.mu.Unlock()
		return exam.Result{}, ErrSubmitInFlight
	}
	s.submitting = true
	if s.submitKey == "" {
		s.submitKey = s.newKey()
	}
	key := s.submitKey
	title := s.exam.Title
	submission := s.submissionLocked()
	s.mu.Unlock()

	if s.journal != nil {
		stored, err := s.journal.MarkPending(ctx, s.examID, title, key)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("could not record pending submission")
		case stored != key:
			key = stored
			s.mu.Lock()
			s.submitKey = stored
			s.mu.Unlock()
		}
	}

	s.logger.Info().
		Int("answers", len(submission.Answers)).
		Int("remaining_sec", submission.RemainingTime).
		Str("idempotency_key", key).
		Msg("submitting exam")

	result, err := s.api.Submit(ctx, submission, key)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("submit failed")
		s.notify(LevelError, fmt.Sprintf("Submission failed: %v. Your answers are kept; try again.", err), err)
		return exam.Result{}, fmt.Errorf("submit exam: %w", err)
	}
	s.state = StateSubmitted
	s.result = &result
	s.answers.Freeze()
	countdown := s.countdown
	s.mu.Unlock()

	countdown.Stop()

	if s.journal != nil {
		if err := s.journal.MarkSubmitted(ctx, s.examID, title, key, result); err != nil {
			s.logger.Warn().Err(err).Msg("could not record submission result")
		}
	}

	s.logger.Info().
		Float64("total_marks", result.TotalMarks).
		Float64("total_original_marks", result.TotalOriginalMarks).
		Msg("exam submitted")
	s.notify(LevelInfo, fmt.Sprintf("Exam submitted. Score: %g / %g", result.TotalMarks, result.TotalOriginalMarks), nil)
	close(s.submitted)
	return result, nil
}

// SubmitAsync runs Submit in the background.
func (s *Session) SubmitAsync(ctx context.Context) *Task {
	return startTask(func() error {
		_, err := s.Submit(ctx)
		return err
	})
}

func (s *Session) handleExpiry() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	s.logger.Info().Msg("time expired")
	s.notify(LevelWarn, "Time is up. Submitting your answers...", nil)

	task := s.SubmitAsync(ctx)
	go func() {
		<-task.Done()
		if err := task.Err(); err != nil && !errors.Is(err, ErrAlreadySubmitted) && !errors.Is(err, ErrSubmitInFlight) {
			s.logger.Error().Err(err).Msg("automatic submit failed")
		}
	}()
}
