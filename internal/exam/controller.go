// Package exam runs a single timed exam attempt: it loads the exam, tracks
// answers and navigation, counts down, and submits exactly once.
//
// All attempt state is owned by one loop goroutine. Operations, ticks and
// network completions are applied there in order, so no two of them ever
// interleave.
package exam

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/learny/internal/api"
	"github.com/pavelanni/learny/internal/model"
)

// Phase is the lifecycle stage of an attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseSubmitting
	PhaseSubmitted
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Backend is the part of the API gateway an attempt needs.
type Backend interface {
	LoadExam(ctx context.Context, id int64) (*model.ExamDefinition, error)
	SubmitExam(ctx context.Context, sub model.ExamSubmission) (*model.ScoredResult, error)
}

// Confirmer asks the student to confirm a manual submission.
type Confirmer interface {
	Confirm(ctx context.Context, s Snapshot) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, s Snapshot) bool

func (f ConfirmFunc) Confirm(ctx context.Context, s Snapshot) bool { return f(ctx, s) }

// Journal records successful submissions locally.
type Journal interface {
	RecordAttempt(a model.Attempt) (int64, error)
}

// Hooks are called from the loop goroutine. They must not call back into
// the Controller synchronously.
type Hooks struct {
	OnTick         func(remaining int)
	OnSubmitted    func(res model.ScoredResult, automatic bool)
	OnSubmitFailed func(err error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTicker replaces the one-second wall-clock ticker.
func WithTicker(f TickerFunc) Option {
	return func(c *Controller) { c.newTicker = f }
}

// WithConfirmer sets the manual submit confirmation. Without one, manual
// submissions are not confirmed.
func WithConfirmer(cf Confirmer) Option {
	return func(c *Controller) { c.confirmer = cf }
}

// WithJournal records every accepted submission in j.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithHooks sets the observer callbacks.
func WithHooks(h Hooks) Option {
	return func(c *Controller) { c.hooks = h }
}

// Snapshot is a read-only copy of the attempt state.
type Snapshot struct {
	Phase     Phase
	ExamID    int64
	Title     string
	Index     int
	Total     int
	Remaining int
	Warning   bool
	Answered  int
	Answers   model.AnswerState
	Result    *model.ScoredResult
	Automatic bool
	Err       error
}

// Unanswered is the number of questions without a selection.
func (s Snapshot) Unanswered() int { return s.Total - s.Answered }

// QuestionView is the question under the cursor.
type QuestionView struct {
	Index     int
	Total     int
	Question  model.Question
	Selected  int64 // 0 when nothing is selected
	NoOptions bool
}

// Controller drives one exam attempt. Create it with New and release it
// with Close.
type Controller struct {
	backend   Backend
	studentID int64
	newTicker TickerFunc
	confirmer Confirmer
	journal   Journal
	hooks     Hooks

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	done   chan struct{}
	closed sync.Once

	submitted chan struct{}
	final     Snapshot // written by the loop before done is closed

	// Owned by the loop goroutine.
	phase     Phase
	examID    int64
	exam      *model.ExamDefinition
	answers   model.AnswerState
	index     int
	remaining int
	ticker    Ticker
	tickC     <-chan time.Time
	epoch     uint64
	autoFired bool
	automatic bool
	result    *model.ScoredResult
	lastErr   error
}

// New starts the attempt loop for studentID.
func New(backend Backend, studentID int64, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:   backend,
		studentID: studentID,
		newTicker: NewTicker,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan func()),
		done:      make(chan struct{}),
		submitted: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.done)
	defer func() { c.final = c.snapshot() }()
	defer c.stopTicker()
	for {
		select {
		case <-c.ctx.Done():
			return
		case fn := <-c.events:
			fn()
		case <-c.tickC:
			c.tick()
		}
	}
}

// call runs fn on the loop and returns its error.
func (c *Controller) call(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.events <- func() { errc <- fn() }:
		return <-errc
	case <-c.done:
		return ErrClosed
	}
}

// bind derives a request context that is also cancelled by Close.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Close stops the countdown, cancels in-flight requests and ends the loop.
// Results arriving afterwards are dropped.
func (c *Controller) Close() error {
	c.closed.Do(c.cancel)
	<-c.done
	return nil
}

// Submitted is closed once a submission has been accepted.
func (c *Controller) Submitted() <-chan struct{} { return c.submitted }

// Load fetches the exam and starts the countdown. A duration of zero or
// less submits the empty attempt immediately.
func (c *Controller) Load(ctx context.Context, examID int64) error {
	var epoch uint64
	err := c.call(func() error {
		if c.phase != PhaseIdle && c.phase != PhaseError {
			return ErrAlreadyLoaded
		}
		c.phase = PhaseLoading
		c.examID = examID
		c.lastErr = nil
		c.epoch++
		epoch = c.epoch
		return nil
	})
	if err != nil {
		return err
	}

	rctx, cancel := c.bind(ctx)
	exam, err := c.backend.LoadExam(rctx, examID)
	cancel()
	if err == nil && (exam == nil || len(exam.Questions) == 0) {
		err = api.ErrNoQuestions
	}

	return c.call(func() error {
		if epoch != c.epoch {
			return errStale
		}
		if err != nil {
			c.phase = PhaseError
			c.lastErr = &LoadError{ExamID: examID, Err: err}
			slog.Error("failed to load exam", "exam_id", examID, "error", err)
			return c.lastErr
		}
		c.start(exam)
		return nil
	})
}

func (c *Controller) start(exam *model.ExamDefinition) {
	c.exam = exam
	c.answers = model.NewAnswerState(exam.Questions)
	c.index = 0
	c.remaining = exam.DurationMinutes * 60
	c.phase = PhaseReady
	slog.Info("exam started", "exam_id", exam.ID, "questions", len(exam.Questions), "seconds", c.remaining)

	if c.remaining <= 0 {
		c.remaining = 0
		c.autoSubmit()
		return
	}
	c.ticker = c.newTicker(time.Second)
	c.tickC = c.ticker.C()
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.tickC = nil
}

func (c *Controller) tick() {
	if c.phase != PhaseReady && c.phase != PhaseSubmitting {
		c.stopTicker()
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.hooks.OnTick != nil {
		c.hooks.OnTick(c.remaining)
	}
	if c.remaining == 0 {
		c.stopTicker()
		c.autoSubmit()
	}
}

// autoSubmit fires at most once per attempt.
func (c *Controller) autoSubmit() {
	if c.autoFired {
		return
	}
	c.autoFired = true
	sub, epoch, err := c.beginSubmit()
	if err != nil {
		slog.Info("time is up, submission already under way", "exam_id", c.examID, "reason", err)
		return
	}
	slog.Info("time is up, submitting", "exam_id", c.examID)
	go func() {
		res, err := c.backend.SubmitExam(c.ctx, sub)
		_ = c.call(func() error {
			return c.finishSubmit(epoch, res, err, true)
		})
	}()
}

func (c *Controller) checkSubmittable() error {
	switch c.phase {
	case PhaseReady:
		return nil
	case PhaseSubmitting:
		return ErrSubmitInProgress
	case PhaseSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotReady
	}
}

// beginSubmit moves to Submitting and freezes the answers into a submission.
func (c *Controller) beginSubmit() (model.ExamSubmission, uint64, error) {
	if err := c.checkSubmittable(); err != nil {
		return model.ExamSubmission{}, 0, err
	}
	c.phase = PhaseSubmitting
	c.epoch++
	return model.NewSubmission(*c.exam, c.studentID, c.answers), c.epoch, nil
}

func (c *Controller) finishSubmit(epoch uint64, res *model.ScoredResult, err error, automatic bool) error {
	if epoch != c.epoch || c.phase != PhaseSubmitting {
		return errStale
	}
	if err == nil && res == nil {
		err = api.ErrEmptyResponse
	}
	if err != nil {
		c.phase = PhaseReady
		if api.IsAuth(err) {
			c.lastErr = err
		} else {
			c.lastErr = &SubmitError{ExamID: c.examID, Automatic: automatic, Err: err}
		}
		slog.Error("submission failed", "exam_id", c.examID, "automatic", automatic, "error", err)
		if c.hooks.OnSubmitFailed != nil {
			c.hooks.OnSubmitFailed(c.lastErr)
		}
		return c.lastErr
	}

	c.phase = PhaseSubmitted
	c.stopTicker()
	c.result = res
	c.automatic = automatic
	c.lastErr = nil
	slog.Info("exam submitted", "exam_id", c.examID, "result_id", res.ResultID, "score", res.Score.Float(), "automatic", automatic)

	if c.journal != nil {
		_, jerr := c.journal.RecordAttempt(model.Attempt{
			ExamID:      c.exam.ID,
			ExamTitle:   c.exam.Title,
			StudentID:   c.studentID,
			ResultID:    res.ResultID,
			Score:       res.Score.Float(),
			Automatic:   automatic,
			SubmittedAt: time.Now(),
		})
		if jerr != nil {
			slog.Warn("failed to journal attempt", "exam_id", c.examID, "error", jerr)
		}
	}
	if c.hooks.OnSubmitted != nil {
		c.hooks.OnSubmitted(*res, automatic)
	}
	close(c.submitted)
	return nil
}

// Submit hands the attempt in. Unless the time has run out, the Confirmer
// is asked first. On failure the attempt returns to Ready with its answers.
func (c *Controller) Submit(ctx context.Context) (*model.ScoredResult, error) {
	var (
		needConfirm bool
		snap        Snapshot
	)
	err := c.call(func() error {
		if err := c.checkSubmittable(); err != nil {
			return err
		}
		needConfirm = c.remaining > 0
		snap = c.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if needConfirm && c.confirmer != nil && !c.confirmer.Confirm(ctx, snap) {
		return nil, ErrSubmitCancelled
	}

	var (
		sub   model.ExamSubmission
		epoch uint64
	)
	err = c.call(func() error {
		var err error
		sub, epoch, err = c.beginSubmit()
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("submitting exam", "exam_id", sub.ExamID, "answers", len(sub.Answers))

	rctx, cancel := c.bind(ctx)
	res, sendErr := c.backend.SubmitExam(rctx, sub)
	cancel()

	var out model.ScoredResult
	err = c.call(func() error {
		if err := c.finishSubmit(epoch, res, sendErr, false); err != nil {
			return err
		}
		out = *c.result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Wait blocks until the attempt has been submitted and returns the result.
func (c *Controller) Wait(ctx context.Context) (*model.ScoredResult, error) {
	select {
	case <-c.submitted:
		s := c.Snapshot()
		return s.Result, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SelectAnswer records optionID as the only answer to questionID.
func (c *Controller) SelectAnswer(questionID, optionID int64) error {
	return c.call(func() error {
		switch c.phase {
		case PhaseSubmitting, PhaseSubmitted:
			return ErrLocked
		case PhaseReady:
		default:
			return ErrNotReady
		}
		q, ok := c.exam.Question(questionID)
		if !ok {
			return ErrUnknownQuestion
		}
		if !q.HasOption(optionID) {
			return ErrUnknownOption
		}
		c.answers[questionID] = []int64{optionID}
		return nil
	})
}

// Advance moves to the next question.
func (c *Controller) Advance() error { return c.move(func(i int) int { return i + 1 }) }

// Retreat moves to the previous question.
func (c *Controller) Retreat() error { return c.move(func(i int) int { return i - 1 }) }

// JumpTo moves to question i, clamped to the exam.
func (c *Controller) JumpTo(i int) error { return c.move(func(int) int { return i }) }

func (c *Controller) move(next func(int) int) error {
	return c.call(func() error {
		switch c.phase {
		case PhaseSubmitted:
			return nil
		case PhaseReady, PhaseSubmitting:
		default:
			return ErrNotReady
		}
		i := next(c.index)
		if i < 0 {
			i = 0
		}
		if n := len(c.exam.Questions); i > n-1 {
			i = n - 1
		}
		c.index = i
		return nil
	})
}

// Snapshot returns a copy of the attempt state. After Close it returns the
// final state.
func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	if err := c.call(func() error {
		s = c.snapshot()
		return nil
	}); err != nil {
		return c.final
	}
	return s
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		Phase:     c.phase,
		ExamID:    c.examID,
		Index:     c.index,
		Remaining: c.remaining,
		Warning:   c.exam != nil && c.remaining < WarningThreshold,
		Automatic: c.automatic,
		Err:       c.lastErr,
	}
	if c.exam != nil {
		s.Title = c.exam.Title
		s.Total = len(c.exam.Questions)
		s.Answers = c.answers.Clone()
		for _, q := range c.exam.Questions {
			if c.answers.Answered(q.ID) {
				s.Answered++
			}
		}
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// Current returns the question under the cursor.
func (c *Controller) Current() (QuestionView, error) {
	var v QuestionView
	err := c.call(func() error {
		if c.exam == nil {
			return ErrNotReady
		}
		q := c.exam.Questions[c.index]
		v = QuestionView{
			Index:     c.index,
			Total:     len(c.exam.Questions),
			Question:  q,
			NoOptions: len(q.Options) == 0,
		}
		if sel := c.answers[q.ID]; len(sel) > 0 {
			v.Selected = sel[0]
		}
		return nil
	})
	return v, err
}
