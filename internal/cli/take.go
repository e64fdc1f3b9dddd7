// Package cli is the terminal front end: an interactive exam session and
// the local results browser.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
	"github.com/codateam/hackerx-client-sub000/internal/session"
)

var errExamOver = errors.New("exam is over")

type TakeConfig struct {
	ExamID           string
	ServerURL        string
	API              session.API
	Journal          session.Journal
	Clock            clockwork.Clock
	Logger           zerolog.Logger
	AutosaveInterval time.Duration
	// TokenExpiry is zero when unknown.
	TokenExpiry time.Time
	// Format of the result printed after submission.
	Format string
}

// RunTake runs one exam attempt as a REPL over in/out. It returns after the
// exam is submitted, on exit, or when in is exhausted.
func RunTake(ctx context.Context, in io.Reader, out io.Writer, cfg TakeConfig) error {
	examID := strings.TrimSpace(cfg.ExamID)
	if examID == "" {
		return errors.New("exam id is required")
	}
	if cfg.API == nil {
		return errors.New("api client is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	format := cfg.Format
	if format == "" {
		format = FormatText
	}

	out = &syncWriter{w: out}
	sess, err := session.New(session.Config{
		ExamID:           examID,
		API:              cfg.API,
		Journal:          cfg.Journal,
		Clock:            clock,
		Logger:           cfg.Logger,
		Notifier:         printNotices(out),
		AutosaveInterval: cfg.AutosaveInterval,
	})
	if err != nil {
		return err
	}

	if err := sess.Load(ctx); err != nil {
		if errors.Is(err, session.ErrNoQuestions) {
			fmt.Fprintln(out, "No questions available for this exam.")
			return nil
		}
		return describeClientError(err, cfg.ServerURL)
	}

	details := sess.Exam()
	questions := sess.Questions()
	title := details.Title
	if title == "" {
		title = details.ID
	}
	fmt.Fprintf(out, "%s\nexam=%s\nquestions=%d\n", title, details.ID, len(questions))

	r := &takeREPL{
		out:       out,
		sess:      sess,
		questions: questions,
		format:    format,
	}

	if sess.State() == session.StateSubmitted {
		fmt.Fprintln(out, "This exam has already been submitted.")
		fmt.Fprintln(out)
		return r.printResult()
	}

	fmt.Fprintf(out, "time remaining=%s\n", sess.RemainingString())
	warnTokenExpiry(out, cfg.TokenExpiry, clock.Now(), sess.Remaining())
	fmt.Fprintln(out)
	printHelp(out)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := sess.Start(runCtx); err != nil {
		return err
	}

	lines := readLines(in, runCtx.Done())
	r.next = func() (string, error) {
		select {
		case line := <-lines:
			return line.text, line.err
		case <-sess.Submitted():
			return "", errExamOver
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	for {
		fmt.Fprint(out, "\n> ")
		line, err := r.next()
		switch {
		case errors.Is(err, errExamOver):
			fmt.Fprintln(out)
			return r.printResult()
		case errors.Is(err, io.EOF):
			fmt.Fprintln(out)
			r.saveBeforeExit(ctx)
			return nil
		case err != nil:
			return err
		}

		finished, err := r.handle(ctx, line)
		if errors.Is(err, errExamOver) {
			return r.printResult()
		}
		if err != nil {
			return err
		}
		if finished {
			return nil
		}
	}
}

type takeREPL struct {
	out       io.Writer
	sess      *session.Session
	questions []exam.Question
	format    string
	next      func() (string, error)
}

// handle runs one REPL command and reports whether the session is finished.
func (r *takeREPL) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	args := strings.Fields(line)
	command := strings.ToLower(args[0])

	switch command {
	case "help":
		printHelp(r.out)
	case "questions":
		r.listQuestions()
	case "show":
		if len(args) != 2 {
			fmt.Fprintln(r.out, "usage: show <n>")
			return false, nil
		}
		idx, err := parseQuestionNumber(args[1], len(r.questions))
		if err != nil {
			fmt.Fprintf(r.out, "invalid question number: %v\n", err)
			return false, nil
		}
		r.showQuestion(idx)
	case "answer":
		return false, r.answer(args, line)
	case "save":
		err := r.sess.SaveProgress(ctx)
		switch {
		case err == nil:
			fmt.Fprintln(r.out, "Progress saved.")
		case errors.Is(err, session.ErrAlreadySubmitted):
			return false, errExamOver
		}
	case "time":
		fmt.Fprintf(r.out, "Time remaining: %s\n", r.sess.RemainingString())
	case "submit":
		return r.submit(ctx)
	case "exit":
		r.saveBeforeExit(ctx)
		return true, nil
	default:
		fmt.Fprintln(r.out, "unknown command. type 'help' for usage.")
	}
	return false, nil
}

func (r *takeREPL) listQuestions() {
	for idx, question := range r.questions {
		mark := " "
		if _, ok := r.sess.AnswerFor(question.ID); ok {
			mark = "x"
		}
		fmt.Fprintf(r.out, "%d. [%s] %s (%s, %s)\n",
			idx+1,
			mark,
			question.Prompt,
			question.Type,
			formatMarks(question.Marks),
		)
	}
	fmt.Fprintf(r.out, "%d of %d answered.\n", len(r.sess.Answers()), len(r.questions))
}

func (r *takeREPL) showQuestion(idx int) {
	question := r.questions[idx]
	current, answered := r.sess.AnswerFor(question.ID)

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Q%d [%s, %s]\n", idx+1, question.Type, formatMarks(question.Marks))
	fmt.Fprintf(r.out, "%s\n\n", question.Prompt)

	if question.IsWritten() {
		if answered {
			fmt.Fprintf(r.out, "Your answer: %s\n", current.WrittenAnswer)
		} else {
			fmt.Fprintln(r.out, "(not answered)")
		}
		return
	}

	if len(question.Options) == 0 {
		fmt.Fprintln(r.out, "(no options)")
		return
	}
	for _, option := range question.LetteredOptions() {
		marker := " "
		if answered && current.SelectedOption == option.Text {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s. %s\n", marker, option.Letter, option.Text)
	}
}

func (r *takeREPL) answer(args []string, line string) error {
	if len(args) < 3 {
		fmt.Fprintln(r.out, "usage: answer <n> <letter|text...>")
		return nil
	}
	idx, err := parseQuestionNumber(args[1], len(r.questions))
	if err != nil {
		fmt.Fprintf(r.out, "invalid question number: %v\n", err)
		return nil
	}
	question := r.questions[idx]

	if question.IsWritten() {
		_, err = r.sess.WriteAnswer(question.ID, restAfterFields(line, 2))
	} else {
		if len(question.Options) == 0 {
			fmt.Fprintf(r.out, "Q%d has no options to choose from.\n", idx+1)
			return nil
		}
		option, ok := question.OptionForLetter(args[2])
		if !ok || len(args) != 3 {
			if last := question.LastLetter(); last == "A" {
				fmt.Fprintln(r.out, "Invalid option. Choose the letter A.")
			} else {
				fmt.Fprintf(r.out, "Invalid option. Choose a letter A-%s.\n", last)
			}
			return nil
		}
		_, err = r.sess.SelectOption(question.ID, option)
	}

	switch {
	case err == nil:
		fmt.Fprintf(r.out, "Answer recorded for Q%d.\n", idx+1)
	case errors.Is(err, session.ErrAlreadySubmitted):
		return errExamOver
	case errors.Is(err, session.ErrSubmitInFlight):
		fmt.Fprintln(r.out, "Your answers are being submitted; changes are locked.")
	case errors.Is(err, exam.ErrInvalidAnswer):
		fmt.Fprintf(r.out, "Invalid answer: %v\n", err)
	default:
		return err
	}
	return nil
}

func (r *takeREPL) submit(ctx context.Context) (bool, error) {
	prompt := fmt.Sprintf("Submit %d of %d answers? This cannot be undone. (yes/no): ",
		len(r.sess.Answers()), len(r.questions))
	ok, err := promptYesNo(r.next, r.out, prompt)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(r.out, "Submission cancelled.")
		return false, nil
	}

	_, err = r.sess.Submit(ctx)
	switch {
	case err == nil, errors.Is(err, session.ErrAlreadySubmitted):
		fmt.Fprintln(r.out)
		return true, r.printResult()
	case errors.Is(err, session.ErrSubmitInFlight):
		fmt.Fprintln(r.out, "A submission is already in progress.")
	}
	// Other failures were already reported as notices; the attempt stays open.
	return false, nil
}

func (r *takeREPL) saveBeforeExit(ctx context.Context) {
	if r.sess.State() != session.StateInProgress || r.sess.Submitting() {
		return
	}
	if err := r.sess.SaveProgress(ctx); err == nil {
		fmt.Fprintln(r.out, "Progress saved. Run take again to resume before time runs out.")
	}
}

func (r *takeREPL) printResult() error {
	result, ok := r.sess.Result()
	if !ok {
		fmt.Fprintln(r.out, "No result available.")
		return nil
	}
	details := r.sess.Exam()
	return RenderResult(r.out, r.format, ResultView{
		ExamID:    details.ID,
		ExamTitle: details.Title,
		Result:    result,
	}, r.questions)
}

func printNotices(out io.Writer) session.Notifier {
	return session.NotifierFunc(func(n session.Notice) {
		switch n.Level {
		case session.LevelError, session.LevelWarn:
			fmt.Fprintf(out, "\n! %s\n", n.Message)
		default:
			fmt.Fprintf(out, "\n%s\n", n.Message)
		}
	})
}

func warnTokenExpiry(out io.Writer, expiry, now time.Time, remaining int) {
	if expiry.IsZero() {
		return
	}
	if !expiry.After(now) {
		fmt.Fprintln(out, "Warning: your access token has expired; requests may be rejected.")
		return
	}
	if expiry.Before(now.Add(time.Duration(remaining) * time.Second)) {
		fmt.Fprintf(out, "Warning: your access token expires in %s, before the exam time runs out.\n",
			expiry.Sub(now).Round(time.Second))
	}
}

func formatMarks(marks float64) string {
	if marks == 1 {
		return "1 mark"
	}
	return formatScore(marks) + " marks"
}

type inputLine struct {
	text string
	err  error
}

// readLines feeds input to the REPL so it can wait on a line and on the
// session at the same time.
func readLines(in io.Reader, done <-chan struct{}) <-chan inputLine {
	lines := make(chan inputLine)
	send := func(line inputLine) bool {
		select {
		case lines <- line:
			return true
		case <-done:
			return false
		}
	}

	go func() {
		reader := bufio.NewReader(in)
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				if text != "" && !send(inputLine{text: text}) {
					return
				}
				send(inputLine{err: err})
				return
			}
			if !send(inputLine{text: text}) {
				return
			}
		}
	}()
	return lines
}
