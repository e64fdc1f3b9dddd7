package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
)

func TestAnswerStoreReplaces(t *testing.T) {
	store := NewAnswerStore("exam-1", []string{"q1", "q2"})

	require.NoError(t, store.Set(exam.Answer{QuestionID: "q2", SelectedOption: "A"}))
	require.NoError(t, store.Set(exam.Answer{QuestionID: "q2", SelectedOption: "B"}))

	assert.Equal(t, 1, store.Len())
	answer, ok := store.Get("q2")
	require.True(t, ok)
	assert.Equal(t, "B", answer.SelectedOption)
	assert.Equal(t, "exam-1", answer.ExamID)

	_, ok = store.Get("q1")
	assert.False(t, ok)
}

func TestAnswerStoreSnapshotOrder(t *testing.T) {
	store := NewAnswerStore("exam-1", []string{"q3", "q1", "q2"})
	for _, id := range []string{"zz", "q2", "q1", "aa", "q3"} {
		require.NoError(t, store.Set(exam.Answer{QuestionID: id, WrittenAnswer: id}))
	}

	var ids []string
	for _, answer := range store.Snapshot() {
		ids = append(ids, answer.QuestionID)
	}
	assert.Equal(t, []string{"q3", "q1", "q2", "aa", "zz"}, ids)
}

func TestAnswerStoreFreeze(t *testing.T) {
	store := NewAnswerStore("exam-1", nil)
	require.NoError(t, store.Set(exam.Answer{QuestionID: "q1", WrittenAnswer: "first"}))

	store.Freeze()
	assert.True(t, store.Frozen())
	assert.ErrorIs(t, store.Set(exam.Answer{QuestionID: "q1", WrittenAnswer: "second"}), ErrAlreadySubmitted)

	answer, _ := store.Get("q1")
	assert.Equal(t, "first", answer.WrittenAnswer)
}

func TestTaskReportsOutcome(t *testing.T) {
	release := make(chan struct{})
	boom := errors.New("boom")
	task := startTask(func() error {
		<-release
		return boom
	})

	assert.Nil(t, task.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, task.Wait(ctx), context.DeadlineExceeded)

	close(release)
	<-task.Done()
	assert.ErrorIs(t, task.Err(), boom)
	assert.ErrorIs(t, task.Wait(context.Background()), boom)
}
