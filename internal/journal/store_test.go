package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, path
}

func TestMarkPendingKeepsFirstKey(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	key, err := store.MarkPending(ctx, "exam-1", "Biology", "key-a")
	require.NoError(t, err)
	assert.Equal(t, "key-a", key)

	key, err = store.MarkPending(ctx, "exam-1", "Biology", "key-b")
	require.NoError(t, err)
	assert.Equal(t, "key-a", key, "a retry must reuse the pending key")

	receipt, err := store.Get(ctx, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, receipt.Status)
	assert.Nil(t, receipt.Result)
}

func TestMarkSubmittedStoresResultAndIsFinal(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	_, err := store.MarkPending(ctx, "exam-1", "Biology", "key-a")
	require.NoError(t, err)

	result := exam.Result{
		TotalMarks:         4,
		TotalOriginalMarks: 6,
		Answers: []exam.QuestionResult{
			{QuestionID: "q1", IsCorrect: true, Marks: 4},
			{QuestionID: "q2", IsCorrect: false, Feedback: "Review chapter 3"},
		},
	}
	require.NoError(t, store.MarkSubmitted(ctx, "exam-1", "Biology", "key-a", result))

	// A later write for the same exam must not replace the recorded result.
	require.NoError(t, store.MarkSubmitted(ctx, "exam-1", "Biology", "key-z", exam.Result{TotalMarks: 0, TotalOriginalMarks: 6}))
	key, err := store.MarkPending(ctx, "exam-1", "Biology", "key-y")
	require.NoError(t, err)
	assert.Equal(t, "key-a", key)

	require.NoError(t, store.Close())
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	receipt, err := reopened.Get(ctx, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, receipt.Status)
	assert.Equal(t, "key-a", receipt.IdempotencyKey)
	require.NotNil(t, receipt.Result)
	assert.Equal(t, result, *receipt.Result)
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	_, err := store.MarkPending(ctx, "exam-old", "", "k1")
	require.NoError(t, err)
	require.NoError(t, store.MarkSubmitted(ctx, "exam-new", "Chemistry", "k2", exam.Result{TotalMarks: 1, TotalOriginalMarks: 1}))

	receipts, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "exam-new", receipts[0].ExamID)
	assert.Equal(t, "exam-old", receipts[1].ExamID)
	assert.True(t, receipts[0].UpdatedAt.After(receipts[1].UpdatedAt))

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMarkPendingValidatesInput(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.MarkPending(context.Background(), " ", "", "k")
	assert.Error(t, err)
	_, err = store.MarkPending(context.Background(), "exam-1", "", "")
	assert.Error(t, err)
}
