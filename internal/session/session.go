// Package session runs one student's attempt at an exam.
//
// A Session owns the answer map, the countdown and the submission state
// machine (in_progress -> submitted). All mutation goes through its methods;
// the countdown and the autosave loop are its only background activity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
	"github.com/codateam/hackerx-client-sub000/internal/journal"
	"github.com/codateam/hackerx-client-sub000/internal/lmsclient"
	"github.com/codateam/hackerx-client-sub000/internal/timer"
)

const DefaultAutosaveInterval = 30 * time.Second

var (
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrNoQuestions      = errors.New("no questions available for this exam")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrNotLoaded        = errors.New("session not loaded")
	ErrAlreadyLoaded    = errors.New("session already loaded")
	ErrLoadInFlight     = errors.New("session load already in progress")
)

type State string

const (
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
)

// API is the part of the LMS backend a session talks to.
type API interface {
	GetExam(ctx context.Context, examID string) (exam.Exam, error)
	GetQuestions(ctx context.Context, examID string) ([]exam.Question, error)
	GetProgress(ctx context.Context, examID string) (exam.Progress, error)
	SaveProgress(ctx context.Context, submission exam.Submission) error
	Submit(ctx context.Context, submission exam.Submission, idempotencyKey string) (exam.Result, error)
}

// Journal records submissions locally. Optional.
type Journal interface {
	Get(ctx context.Context, examID string) (journal.Receipt, error)
	MarkPending(ctx context.Context, examID, examTitle, key string) (string, error)
	MarkSubmitted(ctx context.Context, examID, examTitle, key string, result exam.Result) error
}

type Config struct {
	ExamID   string
	API      API
	Journal  Journal
	Clock    clockwork.Clock
	Logger   zerolog.Logger
	Notifier Notifier

	// AutosaveInterval <= 0 disables periodic saves.
	AutosaveInterval time.Duration

	// NewKey generates submission idempotency keys.
	NewKey func() string
}

type Session struct {
	examID   string
	api      API
	journal  Journal
	clock    clockwork.Clock
	logger   zerolog.Logger
	notifier Notifier
	interval time.Duration
	newKey   func() string

	saves     singleflight.Group
	submitted chan struct{}

	mu         sync.Mutex
	runCtx     context.Context
	stopRun    context.CancelFunc
	autosave   clockwork.Ticker
	loading    bool
	loaded     bool
	exam       exam.Exam
	questions  []exam.Question
	byID       map[string]int
	answers    *AnswerStore
	countdown  *timer.Countdown
	state      State
	submitting bool
	submitKey  string
	result     *exam.Result

	// version counts recorded answers so a save knows what it covers.
	version uint64
}

func New(cfg Config) (*Session, error) {
	examID := strings.TrimSpace(cfg.ExamID)
	if examID == "" {
		return nil, errors.New("exam id is required")
	}
	if cfg.API == nil {
		return nil, errors.New("api client is required")
	}

	s := &Session{
		examID:    examID,
		api:       cfg.API,
		journal:   cfg.Journal,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With().Str("exam_id", examID).Logger(),
		notifier:  cfg.Notifier,
		interval:  cfg.AutosaveInterval,
		newKey:    cfg.NewKey,
		submitted: make(chan struct{}),
		state:     StateInProgress,
		runCtx:    context.Background(),
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	if s.newKey == nil {
		s.newKey = uuid.NewString
	}
	return s, nil
}

// Load fetches the exam, its questions and any saved progress. Saved
// answers and remaining time are applied once here; afterwards the local
// countdown is authoritative.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.loaded:
		s.mu.Unlock()
		return ErrAlreadyLoaded
	case s.loading:
		s.mu.Unlock()
		return ErrLoadInFlight
	}
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	details, err := s.api.GetExam(ctx, s.examID)
	if err != nil {
		return fmt.Errorf("load exam: %w", err)
	}
	if details.ID == "" {
		details.ID = s.examID
	}

	questions, err := s.api.GetQuestions(ctx, s.examID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	questions = exam.OrderQuestions(details, questions)

	s.mu.Lock()
	s.exam = details
	s.mu.Unlock()

	if len(questions) == 0 {
		return ErrNoQuestions
	}

	var receipt *journal.Receipt
	if s.journal != nil {
		stored, err := s.journal.Get(ctx, s.examID)
		switch {
		case err == nil:
			receipt = &stored
		case errors.Is(err, journal.ErrNotFound):
		default:
			s.logger.Warn().Err(err).Msg("could not read submission journal")
		}
	}

	var progress *exam.Progress
	if receipt == nil || receipt.Status != journal.StatusSubmitted {
		saved, err := s.api.GetProgress(ctx, s.examID)
		switch {
		case err == nil:
			progress = &saved
		case errors.Is(err, lmsclient.ErrNoProgress):
		default:
			return fmt.Errorf("load saved progress: %w", err)
		}
	}

	byID := make(map[string]int, len(questions))
	order := make([]string, 0, len(questions))
	for idx, question := range questions {
		byID[question.ID] = idx
		order = append(order, question.ID)
	}
	answers := NewAnswerStore(s.examID, order)
	countdown := timer.New(s.clock, details.DurationSeconds(), s.handleExpiry)

	if progress != nil {
		for _, answer := range progress.Answers {
			idx, ok := byID[answer.QuestionID]
			if !ok {
				s.logger.Warn().Str("question_id", answer.QuestionID).Msg("dropping saved answer for unknown question")
				continue
			}
			answer.ExamID = s.examID
			if err := questions[idx].Validate(answer); err != nil {
				s.logger.Warn().Err(err).Str("question_id", answer.QuestionID).Msg("dropping invalid saved answer")
				continue
			}
			_ = answers.Set(answer)
		}
		if progress.RemainingTime != nil {
			countdown.Set(*progress.RemainingTime)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = questions
	s.byID = byID
	s.answers = answers
	s.countdown = countdown
	s.loaded = true

	if receipt != nil {
		switch receipt.Status {
		case journal.StatusSubmitted:
			s.state = StateSubmitted
			s.result = receipt.Result
			answers.Freeze()
			close(s.submitted)
		case journal.StatusPending:
			s.submitKey = receipt.IdempotencyKey
		}
	}

	s.logger.Info().
		Int("questions", len(questions)).
		Int("restored_answers", answers.Len()).
		Int("remaining_sec", countdown.Remaining()).
		Str("state", string(s.state)).
		Msg("session loaded")
	return nil
}

// Start runs the countdown and, when configured, the autosave loop until
// ctx is done. Expiry submits using ctx. Calling Start again replaces the
// previous run: its autosave ticker is stopped before a new one starts.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if s.state == StateSubmitted {
		s.mu.Unlock()
		return nil
	}
	if s.stopRun != nil {
		s.stopRun()
	}
	if s.autosave != nil {
		s.autosave.Stop()
		s.autosave = nil
	}

	runCtx, stopRun := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.stopRun = stopRun
	var ticker clockwork.Ticker
	if s.interval > 0 {
		ticker = s.clock.NewTicker(s.interval)
		s.autosave = ticker
	}
	countdown := s.countdown
	s.mu.Unlock()

	countdown.Start()
	go func() {
		<-runCtx.Done()
		// A replaced run leaves the countdown to its successor.
		if ctx.Err() != nil {
			countdown.Stop()
		}
	}()

	if ticker != nil {
		go s.runAutosave(runCtx, ticker)
	}
	return nil
}

// Submitted is closed once the session reaches the submitted state.
func (s *Session) Submitted() <-chan struct{} {
	return s.submitted
}

func (s *Session) Exam() exam.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

func (s *Session) Questions() []exam.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]exam.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

func (s *Session) Question(questionID string) (exam.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[questionID]
	if !ok {
		return exam.Question{}, false
	}
	return s.questions[idx], true
}

func (s *Session) Answers() []exam.Answer {
	s.mu.Lock()
	answers := s.answers
	s.mu.Unlock()
	if answers == nil {
		return nil
	}
	return answers.Snapshot()
}

func (s *Session) AnswerFor(questionID string) (exam.Answer, bool) {
	s.mu.Lock()
	answers := s.answers
	s.mu.Unlock()
	if answers == nil {
		return exam.Answer{}, false
	}
	return answers.Get(questionID)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

func (s *Session) Result() (exam.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return exam.Result{}, false
	}
	return *s.result, true
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	countdown := s.countdown
	s.mu.Unlock()
	if countdown == nil {
		return 0
	}
	return countdown.Remaining()
}

func (s *Session) RemainingString() string {
	return timer.Format(s.Remaining())
}

// SelectOption records option as the answer to a multiple-choice question.
func (s *Session) SelectOption(questionID, option string) (exam.Answer, error) {
	return s.record(exam.Answer{QuestionID: questionID, SelectedOption: option})
}

// WriteAnswer records text as the answer to a written question.
func (s *Session) WriteAnswer(questionID, text string) (exam.Answer, error) {
	return s.record(exam.Answer{QuestionID: questionID, WrittenAnswer: text})
}

func (s *Session) record(answer exam.Answer) (exam.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return exam.Answer{}, ErrNotLoaded
	}
	if s.state == StateSubmitted {
		return exam.Answer{}, ErrAlreadySubmitted
	}
	if s.submitting {
		return exam.Answer{}, ErrSubmitInFlight
	}

	idx, ok := s.byID[answer.QuestionID]
	if !ok {
		return exam.Answer{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, answer.QuestionID)
	}
	answer.ExamID = s.examID
	if err := s.questions[idx].Validate(answer); err != nil {
		return exam.Answer{}, err
	}
	if err := s.answers.Set(answer); err != nil {
		return exam.Answer{}, err
	}
	s.version++
	return answer, nil
}

func (s *Session) submissionLocked() exam.Submission {
	return exam.Submission{
		ExamID:        s.examID,
		Answers:       s.answers.Snapshot(),
		RemainingTime: s.countdown.Remaining(),
	}
}

func (s *Session) notify(level Level, message string, err error) {
	s.notifier.Notify(Notice{Level: level, Message: message, Err: err})
}
