package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
	"github.com/codateam/hackerx-client-sub000/internal/journal"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ResultView is a submitted exam's result as printed or exported.
type ResultView struct {
	ExamID      string `json:"examId" yaml:"examId"`
	ExamTitle   string `json:"examTitle,omitempty" yaml:"examTitle,omitempty"`
	exam.Result `json:",inline" yaml:",inline"`
}

func CheckFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want text, json or yaml)", format)
	}
}

// RenderResult writes view in format. questions, when known, label each
// per-question line with its number and prompt.
func RenderResult(out io.Writer, format string, view ResultView, questions []exam.Question) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return writeJSON(out, view)
	case FormatYAML:
		return writeYAML(out, view)
	case FormatText, "":
		renderResultText(out, view, questions)
		return nil
	default:
		return CheckFormat(format)
	}
}

func renderResultText(out io.Writer, view ResultView, questions []exam.Question) {
	title := view.ExamTitle
	if title == "" {
		title = view.ExamID
	}

	numbers := make(map[string]int, len(questions))
	for idx, question := range questions {
		numbers[question.ID] = idx + 1
	}

	fmt.Fprintf(out, "Result for %s\n", title)
	fmt.Fprintf(out, "Score: %s/%s\n", formatScore(view.TotalMarks), formatScore(view.TotalOriginalMarks))
	if len(view.Answers) == 0 {
		return
	}

	fmt.Fprintln(out)
	for _, answer := range view.Answers {
		label := answer.QuestionID
		if n, ok := numbers[answer.QuestionID]; ok {
			label = fmt.Sprintf("Q%d", n)
		}

		verdict := "incorrect"
		if answer.IsCorrect {
			verdict = "correct"
		}
		fmt.Fprintf(out, "%s: %s (%s)\n", label, verdict, formatMarks(answer.Marks))

		switch {
		case answer.SelectedOption != "":
			fmt.Fprintf(out, "  answer: %s\n", answer.SelectedOption)
		case answer.WrittenAnswer != "":
			fmt.Fprintf(out, "  answer: %s\n", answer.WrittenAnswer)
		}
		if answer.Feedback != "" {
			fmt.Fprintf(out, "  feedback: %s\n", answer.Feedback)
		}
	}
}

// RenderReceipts writes a journal listing in format.
func RenderReceipts(out io.Writer, format string, receipts []journal.Receipt) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return writeJSON(out, receipts)
	case FormatYAML:
		return writeYAML(out, receipts)
	case FormatText, "":
	default:
		return CheckFormat(format)
	}

	if len(receipts) == 0 {
		fmt.Fprintln(out, "No submissions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXAM\tTITLE\tSTATUS\tSCORE\tUPDATED")
	for _, receipt := range receipts {
		score := "-"
		if receipt.Result != nil {
			score = formatScore(receipt.Result.TotalMarks) + "/" + formatScore(receipt.Result.TotalOriginalMarks)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			receipt.ExamID,
			receipt.ExamTitle,
			receipt.Status,
			score,
			receipt.UpdatedAt.Local().Format(time.RFC3339),
		)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(out io.Writer, v any) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
