package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/codateam/hackerx-client-sub000/internal/journal"
)

const defaultResultsLimit = 20

type ReceiptStore interface {
	Get(ctx context.Context, examID string) (journal.Receipt, error)
	List(ctx context.Context, limit int) ([]journal.Receipt, error)
}

// RunResults prints one exam's recorded result, or lists recent submissions
// when examID is empty.
func RunResults(ctx context.Context, out io.Writer, store ReceiptStore, examID, format string, limit int) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatText
	}
	if err := CheckFormat(format); err != nil {
		return err
	}

	examID = strings.TrimSpace(examID)
	if examID == "" {
		if limit <= 0 {
			limit = defaultResultsLimit
		}
		receipts, err := store.List(ctx, limit)
		if err != nil {
			return err
		}
		return RenderReceipts(out, format, receipts)
	}

	receipt, err := store.Get(ctx, examID)
	if errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("no submission recorded for exam %s", examID)
	}
	if err != nil {
		return err
	}

	if receipt.Status != journal.StatusSubmitted || receipt.Result == nil {
		if format == FormatText {
			fmt.Fprintf(out, "Submission of exam %s is still pending. Run 'take %s' to retry it.\n", examID, examID)
			return nil
		}
		return RenderReceipts(out, format, []journal.Receipt{receipt})
	}

	return RenderResult(out, format, ResultView{
		ExamID:    receipt.ExamID,
		ExamTitle: receipt.ExamTitle,
		Result:    *receipt.Result,
	}, nil)
}
