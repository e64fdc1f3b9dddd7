package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/codateam/hackerx-client-sub000/internal/lmsclient"
)

// syncWriter serialises writes from the REPL and from background notices.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  questions")
	fmt.Fprintln(out, "  show <n>")
	fmt.Fprintln(out, "  answer <n> <letter|text...>")
	fmt.Fprintln(out, "  save")
	fmt.Fprintln(out, "  time")
	fmt.Fprintln(out, "  submit")
	fmt.Fprintln(out, "  exit")
}

// parseQuestionNumber turns a 1-based question number into an index.
func parseQuestionNumber(arg string, count int) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || value <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	if value > count {
		return 0, fmt.Errorf("there are only %d questions", count)
	}
	return value - 1, nil
}

// restAfterFields returns line with its first n whitespace-separated fields
// removed, preserving the spacing of what remains.
func restAfterFields(line string, n int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx:], " \t")
	}
	return rest
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func promptYesNo(next func() (string, error), out io.Writer, prompt string) (bool, error) {
	for {
		fmt.Fprint(out, prompt)
		line, err := next()
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}

func describeClientError(err error, serverURL string) error {
	if errors.Is(err, lmsclient.ErrServiceUnavailable) {
		return fmt.Errorf("exam service unavailable at %s", serverURL)
	}
	var apiErr *lmsclient.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.Error())
	}
	return err
}
