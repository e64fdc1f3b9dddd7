package session

import (
	"sort"
	"sync"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
)

// AnswerStore is the answer map of one attempt: at most one answer per
// question id. Questions the student has not touched are absent.
type AnswerStore struct {
	examID string
	order  map[string]int

	mu      sync.RWMutex
	answers map[string]exam.Answer
	frozen  bool
}

// NewAnswerStore creates an empty store. order lists question ids in the
// sequence snapshots should follow.
func NewAnswerStore(examID string, order []string) *AnswerStore {
	positions := make(map[string]int, len(order))
	for idx, id := range order {
		if _, ok := positions[id]; !ok {
			positions[id] = idx
		}
	}
	return &AnswerStore{
		examID:  examID,
		order:   positions,
		answers: make(map[string]exam.Answer),
	}
}

// Set replaces the answer for answer.QuestionID.
func (s *AnswerStore) Set(answer exam.Answer) error {
	if answer.ExamID == "" {
		answer.ExamID = s.examID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrAlreadySubmitted
	}
	s.answers[answer.QuestionID] = answer
	return nil
}

func (s *AnswerStore) Get(questionID string) (exam.Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer, ok := s.answers[questionID]
	return answer, ok
}

func (s *AnswerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

// Snapshot returns a copy of every answer, in question order. Answers for
// ids outside the known order sort last by id.
func (s *AnswerStore) Snapshot() []exam.Answer {
	s.mu.RLock()
	snapshot := make([]exam.Answer, 0, len(s.answers))
	for _, answer := range s.answers {
		snapshot = append(snapshot, answer)
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		pi, iKnown := s.order[snapshot[i].QuestionID]
		pj, jKnown := s.order[snapshot[j].QuestionID]
		switch {
		case iKnown && jKnown:
			return pi < pj
		case iKnown != jKnown:
			return iKnown
		default:
			return snapshot[i].QuestionID < snapshot[j].QuestionID
		}
	})
	return snapshot
}

// Freeze rejects all later writes.
func (s *AnswerStore) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

func (s *AnswerStore) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}
