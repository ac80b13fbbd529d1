package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/proctor"
	"github.com/stemsi/exstem-assessment/internal/runner"
	"golang.org/x/term"
)

func takeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take an assigned exam",
		Long: `Take an assigned exam in this terminal.

The exam needs an interactive terminal. Interrupting (Ctrl+C) leaves the exam and
submits it; suspending (Ctrl+Z) or resizing the window counts as leaving the exam
window, and the second time submits it.`,
		RunE: runTake,
	}
	refFlags(cmd)
	return cmd
}

func runTake(cmd *cobra.Command, _ []string) error {
	v, c, log := setup(cmd)
	if err := requireIDs(v, "quiz", "session", "assignment", "user"); err != nil {
		return err
	}
	ref := refFrom(v)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	questions, err := c.AssignQuestions(ctx, ref)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	state, err := c.State(ctx, ref.AssignmentID)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if state.Status.Finished() {
		return fmt.Errorf("this attempt has already ended (%s)", state.Status)
	}

	con := newConsole(cmd.OutOrStdout())
	r, err := runner.New(runner.Config{
		Questions: questions,
		TimeLimit: time.Duration(state.TimeLimitSeconds) * time.Second,
		Policy:    proctor.DefaultPolicy(),
		Backend:   c.Backend(ref),
		Listener:  con,
	})
	if err != nil {
		return err
	}
	con.r = r

	lines := readLines(os.Stdin)
	con.instructions(len(questions), state.TimeLimitSeconds)

	for {
		if _, ok := <-lines; !ok {
			return errors.New("input closed before the exam started")
		}
		err := r.Accept(ctx, terminalEnv())
		var gate *proctor.GateError
		if errors.As(err, &gate) {
			con.printf("%s\nPress Enter to try again.\n", gate.Result.Message)
			continue
		}
		if err != nil {
			log.Debug().Err(err).Msg("Start failed")
			con.printf("Press Enter to try again.\n")
			continue
		}
		break
	}

	go func() {
		for sig := range watchSignals(ctx) {
			if _, err := r.Observe(ctx, sig); err != nil {
				log.Debug().Err(err).Str("signal", string(sig)).Msg("Observe failed")
			}
		}
	}()
	go func() { _ = r.Run(ctx) }()

	if r.Phase() == runner.PhaseActive {
		con.show()
	}
	for r.Phase() != runner.PhaseTerminal {
		select {
		case line, ok := <-lines:
			if !ok {
				return errors.New("input closed; your answers were not submitted")
			}
			con.handle(ctx, line)
		case <-con.done:
		}
	}

	con.summary(r.Result())
	return nil
}

// terminalEnv describes this terminal to the entry gate. A terminal counts as fullscreen
// when stdin and stdout are both interactive.
func terminalEnv() proctor.Environment {
	env := proctor.Environment{UserAgent: "examctl (" + runtime.GOOS + ")"}
	in, out := int(os.Stdin.Fd()), int(os.Stdout.Fd())
	if !term.IsTerminal(in) || !term.IsTerminal(out) {
		return env
	}
	if w, h, err := term.GetSize(out); err == nil {
		env.OuterWidth, env.InnerWidth = w, w
		env.OuterHeight, env.InnerHeight = h, h
	}
	env.Fullscreen = true
	return env
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- strings.TrimSpace(sc.Text())
		}
	}()
	return ch
}

// console renders runner events and interprets typed commands.
type console struct {
	mu   sync.Mutex
	w    io.Writer
	r    *runner.Runner
	done chan struct{}
	once sync.Once
}

func newConsole(w io.Writer) *console {
	return &console{w: w, done: make(chan struct{})}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

func (c *console) instructions(n, limitSeconds int) {
	c.printf(`Instructions
  Questions:  %d
  Time limit: %s

  Stay in this terminal until you submit. Pressing Ctrl+C submits the exam.
  Suspending or resizing the terminal is a violation; the second one submits the exam.

Commands: a <text|option number>, c (clear), n, p, g <number>, f (first unanswered),
          s (submit), st (status), h (help)

Press Enter to begin.
`, n, time.Duration(limitSeconds)*time.Second)
}

func (c *console) show() {
	snap := c.r.Snapshot()
	q := c.r.Questions()[snap.Current]

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\nQuestion %d/%d  [%s left, %d answered]\n%s\n", snap.Current+1, snap.Total,
		time.Duration(snap.Remaining)*time.Second, snap.Answered, q.QuestionText)
	for i, opt := range q.Options {
		mark := " "
		if snap.Answers[q.ID] == opt {
			mark = "*"
		}
		fmt.Fprintf(c.w, "  %s %d) %s\n", mark, i+1, opt)
	}
	if a := snap.Answers[q.ID]; a != "" && !contains(q.Options, a) {
		fmt.Fprintf(c.w, "  Your answer: %s\n", a)
	}
}

func (c *console) handle(ctx context.Context, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(cmd) {
	case "", "show":
		c.show()
		return
	case "a", "answer":
		err = c.answer(arg)
		if err == nil {
			c.show()
		}
	case "c", "clear":
		q := c.current()
		err = c.r.ClearAnswer(q.ID)
		if err == nil {
			c.show()
		}
	case "n", "next":
		_, err = c.r.Next()
	case "p", "prev":
		_, err = c.r.Previous()
	case "g", "goto":
		var n int
		n, err = strconv.Atoi(arg)
		if err == nil {
			err = c.r.GoTo(n - 1)
		}
	case "f", "first":
		_, err = c.r.JumpToFirstUnanswered()
	case "s", "submit":
		_, err = c.r.SubmitManual(ctx)
	case "st", "status":
		snap := c.r.Snapshot()
		c.printf("%s left, %d/%d answered (%.0f%%), %d violation(s)\n",
			time.Duration(snap.Remaining)*time.Second, snap.Answered, snap.Total, snap.Progress, snap.Violations)
		return
	case "h", "help":
		c.printf("a <text|option number>, c, n, p, g <number>, f, s, st\n")
		return
	default:
		c.printf("Unknown command %q. Type h for help.\n", cmd)
		return
	}

	var incomplete *runner.IncompleteError
	switch {
	case err == nil, errors.As(err, &incomplete):
	case errors.Is(err, runner.ErrOutOfRange), errors.Is(err, strconv.ErrSyntax):
		c.printf("No such question.\n")
	case errors.Is(err, runner.ErrWrongPhase), errors.Is(err, runner.ErrSubmitInProgress):
		c.printf("%v\n", err)
	}
}

func (c *console) current() model.AssignedQuestionForStudent {
	return c.r.Questions()[c.r.Snapshot().Current]
}

// answer records arg for the current question; an option number selects that option.
func (c *console) answer(arg string) error {
	q := c.current()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(q.Options) {
		arg = q.Options[n-1]
	}
	return c.r.SetAnswer(q.ID, arg)
}

// OnEvent renders runner events.
func (c *console) OnEvent(ev runner.Event) {
	switch ev.Type {
	case runner.EventIndexChanged:
		c.show()
	case runner.EventTimeWarning, runner.EventViolationWarn:
		c.printf("\n!! %s\n", ev.Message)
	case runner.EventIncomplete:
		c.printf("\n%s\n", ev.Message)
		c.show()
	case runner.EventSubmitting:
		if ev.Message != "" {
			c.printf("\n%s\n", ev.Message)
		}
		c.printf("Submitting...\n")
	case runner.EventSubmitFailed, runner.EventStartFailed:
		c.printf("\n%s (%v)\n", ev.Message, ev.Err)
	case runner.EventSubmitted:
		c.once.Do(func() { close(c.done) })
	}
}

func (c *console) summary(res *model.AssessmentResult) {
	if res == nil {
		return
	}
	c.printf("\nResult: %s (%s)\nScore: %d/%d (%.2f%%)\n",
		res.Status, res.CompletionReason, res.Score, res.TotalQuestions, res.Percentage)
	for _, w := range res.WrongAnswers {
		given := "(no answer)"
		if w.UserAnswer != nil {
			given = *w.UserAnswer
		}
		c.printf("\n- %s\n  Your answer: %s\n  Correct:     %s\n", w.QuestionText, given, w.CorrectAnswer)
		if w.Explanation != "" {
			c.printf("  %s\n", w.Explanation)
		}
	}
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
