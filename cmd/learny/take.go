package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pavelanni/learny/internal/api"
	"github.com/pavelanni/learny/internal/exam"
	"github.com/pavelanni/learny/internal/result"
)

func takeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "take EXAM_ID",
		Short: "Take a timed exam",
		Long: `Take a timed exam interactively.

Type an option number to answer the current question, n and p to move
between questions, g N to jump to question N, s to submit. When the timer
reaches zero the answers are submitted automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: runTake,
	}
}

var newExamTicker exam.TickerFunc = exam.NewTicker // mockable

// takeEvents carries controller notifications into the take loop.
type takeEvents struct {
	timeUp chan struct{}
	warned chan int
	failed chan error
}

func runTake(cmd *cobra.Command, args []string) error {
	examID, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := openApp(cmd, gatePrivate)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireStudent(); err != nil {
		return err
	}
	if n, err := a.db.AttemptCount(a.user().ID, examID); err == nil && n > 0 {
		slog.Warn("exam was already submitted from this machine", "exam_id", examID, "attempts", n)
	}

	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan string)
	go readLines(ctx, a.in, lines)

	ev := takeEvents{
		timeUp: make(chan struct{}, 1),
		warned: make(chan int, 1),
		failed: make(chan error, 1),
	}
	var ctrl *exam.Controller
	ctrl = exam.New(a.client, a.user().ID,
		exam.WithTicker(newExamTicker),
		exam.WithJournal(a.db),
		exam.WithConfirmer(exam.ConfirmFunc(func(ctx context.Context, s exam.Snapshot) bool {
			a.out.Prompt("ExamConfirmSubmit", map[string]any{"Unanswered": s.Unanswered(), "Total": s.Total})
			return awaitYes(ctx, lines, ctrl.Submitted())
		})),
		exam.WithHooks(exam.Hooks{
			OnTick: func(remaining int) {
				switch remaining {
				case 0:
					notify(ev.timeUp, struct{}{})
				case exam.WarningThreshold, 60:
					notify(ev.warned, remaining)
				}
			},
			OnSubmitFailed: func(err error) { notify(ev.failed, err) },
		}),
	)
	defer ctrl.Close()

	if err := ctrl.Load(ctx, examID); err != nil {
		if api.IsAuth(err) {
			return err
		}
		a.out.Linef("ExamLoadFailed", map[string]any{"Error": err})
		return errReported
	}
	a.out.Line("ExamHelp")
	a.showQuestion(ctrl)

	for {
		select {
		case <-ctx.Done():
			slog.Info("exam interrupted", "exam_id", examID)
			return errAbandoned
		case <-ctrl.Submitted():
			a.finishTake(ctrl, ev)
			return nil
		case <-ev.timeUp:
			a.out.Line("ExamTimeUp")
		case <-ev.warned:
			fmt.Fprintln(a.w, a.out.Timer(ctrl.Snapshot()))
		case err := <-ev.failed:
			// Manual failures are reported where Submit returns.
			var serr *exam.SubmitError
			if api.IsAuth(err) {
				return err
			}
			if errors.As(err, &serr) && serr.Automatic {
				a.out.Linef("ExamSubmitFailed", map[string]any{"Error": serr.Err})
			}
		case line, ok := <-lines:
			if !ok {
				return errAbandoned
			}
			done, err := a.handleTakeInput(ctx, ctrl, ev, lines, line)
			if err != nil || done {
				return err
			}
		}
	}
}

// handleTakeInput applies one line of input. done is true once the attempt
// has been submitted and its result printed.
func (a *app) handleTakeInput(ctx context.Context, ctrl *exam.Controller, ev takeEvents, lines <-chan string, line string) (done bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		a.showQuestion(ctrl)
		return false, nil
	}

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "n":
		err = ctrl.Advance()
	case "p":
		err = ctrl.Retreat()
	case "g":
		n := 0
		if len(fields) > 1 {
			n, _ = strconv.Atoi(fields[1])
		}
		err = ctrl.JumpTo(n - 1)
	case "t":
		fmt.Fprintln(a.w, a.out.Timer(ctrl.Snapshot()))
		return false, nil
	case "h", "?":
		a.out.Line("ExamHelp")
		return false, nil
	case "s":
		return a.submit(ctx, ctrl, ev)
	case "q":
		a.out.Prompt("ExamQuitConfirm", nil)
		if awaitYes(ctx, lines, ctrl.Submitted()) {
			return false, errAbandoned
		}
		return false, nil
	default:
		n, convErr := strconv.Atoi(cmd)
		if convErr != nil {
			a.out.Line("ExamUnknownCommand")
			return false, nil
		}
		a.selectOption(ctrl, n)
	}
	if err != nil {
		return false, err
	}
	a.showQuestion(ctrl)
	return false, nil
}

func (a *app) selectOption(ctrl *exam.Controller, n int) {
	v, err := ctrl.Current()
	if err != nil {
		return
	}
	if v.NoOptions || n < 1 || n > len(v.Question.Options) {
		a.out.Line("ExamInvalidOption")
		return
	}
	err = ctrl.SelectAnswer(v.Question.ID, v.Question.Options[n-1].ID)
	switch {
	case errors.Is(err, exam.ErrLocked):
		a.out.Line("ExamLocked")
	case err != nil:
		slog.Warn("select answer", "error", err)
	}
}

func (a *app) submit(ctx context.Context, ctrl *exam.Controller, ev takeEvents) (bool, error) {
	a.out.Line("ExamSubmitting")
	_, err := ctrl.Submit(ctx)
	var serr *exam.SubmitError
	switch {
	case err == nil:
		a.showResult(ctrl)
		return true, nil
	case isClosed(ctrl.Submitted()):
		// The countdown handed the attempt in while the prompt was open.
		fmt.Fprintln(a.w)
		a.finishTake(ctrl, ev)
		return true, nil
	case api.IsAuth(err):
		return false, err
	case errors.Is(err, exam.ErrSubmitCancelled):
		a.out.Line("ExamSubmitCancelled")
	case errors.Is(err, exam.ErrSubmitInProgress), errors.Is(err, exam.ErrAlreadySubmitted):
		// The automatic submission is under way; Submitted fires when it lands.
	case errors.As(err, &serr):
		a.out.Linef("ExamSubmitFailed", map[string]any{"Error": serr.Err})
	default:
		return false, err
	}
	return false, nil
}

func (a *app) showQuestion(ctrl *exam.Controller) {
	v, err := ctrl.Current()
	if err != nil {
		return
	}
	a.out.Question(v, ctrl.Snapshot())
}

// finishTake prints the result, preceded by the time-up notice when the
// countdown ended the attempt and the notice has not been shown yet.
func (a *app) finishTake(ctrl *exam.Controller, ev takeEvents) {
	select {
	case <-ev.timeUp:
		a.out.Line("ExamTimeUp")
	default:
	}
	a.showResult(ctrl)
}

func (a *app) showResult(ctrl *exam.Controller) {
	s := ctrl.Snapshot()
	if s.Result == nil {
		return
	}
	a.out.Result(result.Build(*s.Result), s.Automatic)
}

// readLines forwards input lines until EOF or ctx is done.
func readLines(ctx context.Context, r *bufio.Reader, out chan<- string) {
	defer close(out)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			select {
			case out <- strings.TrimSpace(line):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Warn("read input", "error", err)
			}
			return
		}
	}
}

// awaitYes waits for the answer to a yes/no prompt. It gives up with false
// when done is closed first.
func awaitYes(ctx context.Context, lines <-chan string, done <-chan struct{}) bool {
	select {
	case line, ok := <-lines:
		return ok && isYes(line)
	case <-done:
		return false
	case <-ctx.Done():
		return false
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// notify delivers v unless an earlier value is still pending.
func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
