package cli

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func linesFrom(input ...string) func() (string, error) {
	return func() (string, error) {
		if len(input) == 0 {
			return "", io.EOF
		}
		line := input[0]
		input = input[1:]
		return line, nil
	}
}

func TestParseQuestionNumber(t *testing.T) {
	if got, err := parseQuestionNumber("2", 3); err != nil || got != 1 {
		t.Fatalf("parseQuestionNumber valid = (%d, %v), want (1, nil)", got, err)
	}
	if _, err := parseQuestionNumber("0", 3); err == nil {
		t.Fatalf("expected validation error for non-positive number")
	}
	if _, err := parseQuestionNumber("abc", 3); err == nil {
		t.Fatalf("expected parse error for non-integer number")
	}
	if _, err := parseQuestionNumber("4", 3); err == nil {
		t.Fatalf("expected range error past the last question")
	}
}

func TestRestAfterFields(t *testing.T) {
	cases := []struct {
		line string
		n    int
		want string
	}{
		{"answer 3 Water  moves\tacross", 2, "Water  moves\tacross"},
		{"  answer   3   spaced out  ", 2, "spaced out"},
		{"answer 3", 2, ""},
		{"answer", 1, ""},
	}
	for _, tc := range cases {
		if got := restAfterFields(tc.line, tc.n); got != tc.want {
			t.Fatalf("restAfterFields(%q, %d) = %q, want %q", tc.line, tc.n, got, tc.want)
		}
	}
}

func TestPromptYesNoRetriesUntilValid(t *testing.T) {
	var out bytes.Buffer

	ok, err := promptYesNo(linesFrom("maybe\n", "yes\n"), &out, "continue? ")
	if err != nil {
		t.Fatalf("promptYesNo returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected yes result")
	}
	if !strings.Contains(out.String(), "Please answer yes or no.") {
		t.Fatalf("expected retry hint in output, got: %s", out.String())
	}

	if _, err := promptYesNo(linesFrom(), &out, "continue? "); !errors.Is(err, io.EOF) {
		t.Fatalf("promptYesNo on closed input = %v, want EOF", err)
	}
}

func TestFormatMarks(t *testing.T) {
	if got := formatMarks(1); got != "1 mark" {
		t.Fatalf("formatMarks(1) = %q", got)
	}
	if got := formatMarks(2.5); got != "2.5 marks" {
		t.Fatalf("formatMarks(2.5) = %q", got)
	}
}
