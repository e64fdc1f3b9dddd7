package exam

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeWrittenShort   QuestionType = "written-short"
	TypeWrittenLong    QuestionType = "written-long"
)

const (
	maxShortAnswerRunes = 500
	maxLongAnswerRunes  = 20000
)

var ErrInvalidAnswer = errors.New("invalid answer")

type Exam struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Duration    int      `json:"duration" yaml:"duration"` // minutes
	QuestionIDs []string `json:"questions,omitempty" yaml:"questions,omitempty"`
}

// DurationSeconds is the full countdown for a fresh attempt.
func (e Exam) DurationSeconds() int {
	if e.Duration <= 0 {
		return 0
	}
	return e.Duration * 60
}

type Question struct {
	ID      string       `json:"id"`
	ExamID  string       `json:"examId,omitempty"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"text"`
	Options []string     `json:"options,omitempty"`
	Marks   float64      `json:"marks"`
}

type Option struct {
	Letter string
	Text   string
}

// Answer is the student's current response to one question. Exactly one of
// SelectedOption and WrittenAnswer is set, depending on the question type.
type Answer struct {
	QuestionID     string `json:"questionId" yaml:"questionId"`
	ExamID         string `json:"examId" yaml:"examId"`
	SelectedOption string `json:"selectedOption,omitempty" yaml:"selectedOption,omitempty"`
	WrittenAnswer  string `json:"writtenAnswer,omitempty" yaml:"writtenAnswer,omitempty"`
}

// Progress is the saved state of an attempt as returned on reload.
// RemainingTime is nil when the backend did not report one.
type Progress struct {
	Answers       []Answer `json:"answers"`
	RemainingTime *int     `json:"remainingTime"`
}

// Submission is the body of both the progress save and the final submit.
type Submission struct {
	ExamID        string   `json:"examId"`
	Answers       []Answer `json:"answers"`
	RemainingTime int      `json:"remainingTime"`
}

type QuestionResult struct {
	QuestionID     string  `json:"questionId" yaml:"questionId"`
	SelectedOption string  `json:"selectedOption,omitempty" yaml:"selectedOption,omitempty"`
	WrittenAnswer  string  `json:"writtenAnswer,omitempty" yaml:"writtenAnswer,omitempty"`
	IsCorrect      bool    `json:"isCorrect" yaml:"isCorrect"`
	Marks          float64 `json:"marks" yaml:"marks"`
	Feedback       string  `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

type Result struct {
	TotalMarks         float64          `json:"totalMarks" yaml:"totalMarks"`
	TotalOriginalMarks float64          `json:"totalOriginalMarks" yaml:"totalOriginalMarks"`
	Answers            []QuestionResult `json:"answers" yaml:"answers"`
}

func (q Question) IsWritten() bool {
	return q.Type == TypeWrittenShort || q.Type == TypeWrittenLong
}

func (q Question) LetteredOptions() []Option {
	options := make([]Option, len(q.Options))
	for idx, text := range q.Options {
		options[idx] = Option{
			Letter: OptionLabel(idx),
			Text:   text,
		}
	}
	return options
}

// LastLetter labels the final option, or "" when there are none.
func (q Question) LastLetter() string {
	if len(q.Options) == 0 {
		return ""
	}
	return OptionLabel(len(q.Options) - 1)
}

// OptionForLetter maps a letter label (A-Z, then AA, AB, ...) to the option
// text it labels.
func (q Question) OptionForLetter(answer string) (string, bool) {
	index, ok := labelIndex(NormalizeLetter(answer))
	if !ok || index >= len(q.Options) {
		return "", false
	}
	return q.Options[index], true
}

// LetterForOption is the inverse of OptionForLetter. Returns "" when the
// option is not part of the question.
func (q Question) LetterForOption(option string) string {
	for idx, text := range q.Options {
		if text == option {
			return OptionLabel(idx)
		}
	}
	return ""
}

// OptionLabel labels the option at idx the way spreadsheet columns are
// labelled: A..Z, AA..AZ, BA and so on.
func OptionLabel(idx int) string {
	var label []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		label = append([]byte{byte('A' + (n-1)%26)}, label...)
	}
	return string(label)
}

func labelIndex(label string) (int, bool) {
	if label == "" || len(label) > 4 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		n = n*26 + int(label[i]-'A') + 1
	}
	return n - 1, true
}

// Validate checks that answer has the shape this question's type requires.
func (q Question) Validate(answer Answer) error {
	if answer.QuestionID != q.ID {
		return fmt.Errorf("%w: answer for %q given to question %q", ErrInvalidAnswer, answer.QuestionID, q.ID)
	}

	switch q.Type {
	case TypeMultipleChoice:
		if answer.WrittenAnswer != "" {
			return fmt.Errorf("%w: question %s takes a selected option", ErrInvalidAnswer, q.ID)
		}
		if q.LetterForOption(answer.SelectedOption) == "" {
			return fmt.Errorf("%w: %q is not an option of question %s", ErrInvalidAnswer, answer.SelectedOption, q.ID)
		}
	case TypeWrittenShort, TypeWrittenLong:
		if answer.SelectedOption != "" {
			return fmt.Errorf("%w: question %s takes written text", ErrInvalidAnswer, q.ID)
		}
		if strings.TrimSpace(answer.WrittenAnswer) == "" {
			return fmt.Errorf("%w: written answer for question %s is empty", ErrInvalidAnswer, q.ID)
		}
		limit := maxShortAnswerRunes
		if q.Type == TypeWrittenLong {
			limit = maxLongAnswerRunes
		}
		if utf8.RuneCountInString(answer.WrittenAnswer) > limit {
			return fmt.Errorf("%w: written answer for question %s exceeds %d characters", ErrInvalidAnswer, q.ID, limit)
		}
	default:
		return fmt.Errorf("%w: unsupported question type %q", ErrInvalidAnswer, q.Type)
	}
	return nil
}

// OrderQuestions arranges questions by the exam's question references.
// Questions the exam does not reference keep their fetched order at the end.
func OrderQuestions(e Exam, questions []Question) []Question {
	if len(e.QuestionIDs) == 0 {
		return questions
	}

	position := make(map[string]int, len(e.QuestionIDs))
	for idx, id := range e.QuestionIDs {
		if _, seen := position[id]; !seen {
			position[id] = idx
		}
	}

	ordered := make([]Question, 0, len(questions))
	rest := make([]Question, 0)
	slots := make([]*Question, len(e.QuestionIDs))
	for idx := range questions {
		pos, ok := position[questions[idx].ID]
		if !ok || slots[pos] != nil {
			rest = append(rest, questions[idx])
			continue
		}
		slots[pos] = &questions[idx]
	}
	for _, slot := range slots {
		if slot != nil {
			ordered = append(ordered, *slot)
		}
	}
	return append(ordered, rest...)
}

// NormalizeLetter upper-cases an option label, returning "" when answer is
// not made of letters A-Z only.
func NormalizeLetter(answer string) string {
	letter := strings.ToUpper(strings.TrimSpace(answer))
	if letter == "" {
		return ""
	}
	for i := 0; i < len(letter); i++ {
		if letter[i] < 'A' || letter[i] > 'Z' {
			return ""
		}
	}
	return letter
}
