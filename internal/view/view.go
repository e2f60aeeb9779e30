// Package view prints screens to a terminal.
package view

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pavelanni/learny/internal/exam"
	"github.com/pavelanni/learny/internal/i18n"
	"github.com/pavelanni/learny/internal/model"
	"github.com/pavelanni/learny/internal/result"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

// Printer writes localized, optionally coloured output.
type Printer struct {
	w     io.Writer
	ctx   context.Context
	color bool
	now   func() time.Time
}

// New returns a Printer writing to w. ctx carries the localizer.
func New(ctx context.Context, w io.Writer, color bool) *Printer {
	return &Printer{w: w, ctx: ctx, color: color, now: time.Now}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

// Line prints one translated message.
func (p *Printer) Line(msgID string) {
	fmt.Fprintln(p.w, i18n.T(p.ctx, msgID))
}

// Linef prints one translated message with template data.
func (p *Printer) Linef(msgID string, data map[string]any) {
	fmt.Fprintln(p.w, i18n.Td(p.ctx, msgID, data))
}

// Prompt prints a translated message without a trailing newline.
func (p *Printer) Prompt(msgID string, data map[string]any) {
	fmt.Fprint(p.w, i18n.Td(p.ctx, msgID, data))
}

// Timer renders the remaining time, highlighted under the warning threshold.
func (p *Printer) Timer(s exam.Snapshot) string {
	text := i18n.Td(p.ctx, "ExamTimeLeft", map[string]any{"Time": exam.FormatRemaining(s.Remaining)})
	if s.Warning {
		return p.paint(ansiRed+ansiBold, text)
	}
	return text
}

// Question prints the question under the cursor with its options.
func (p *Printer) Question(v exam.QuestionView, s exam.Snapshot) {
	fmt.Fprintln(p.w)
	header := i18n.Td(p.ctx, "ExamQuestionOf", map[string]any{"Index": v.Index + 1, "Total": v.Total})
	answered := i18n.Td(p.ctx, "ExamAnswered", map[string]any{"Answered": s.Answered, "Total": s.Total})
	fmt.Fprintf(p.w, "%s  |  %s  |  %s\n", p.paint(ansiBold, header), p.Timer(s), answered)
	fmt.Fprintln(p.w, v.Question.Text)
	if v.NoOptions {
		fmt.Fprintln(p.w, p.paint(ansiDim, i18n.T(p.ctx, "ExamNoOptions")))
		return
	}
	for i, o := range v.Question.Options {
		marker := "( )"
		if o.ID == v.Selected {
			marker = p.paint(ansiGreen, "(*)")
		}
		fmt.Fprintf(p.w, "  %s %d. %s\n", marker, i+1, o.Text)
	}
}

// Result prints a scored attempt.
func (p *Printer) Result(rep result.Report, automatic bool) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.paint(ansiBold, i18n.Td(p.ctx, "ResultTitle", map[string]any{"Exam": rep.ExamTitle})))
	if rep.CourseName != "" {
		fmt.Fprintln(p.w, rep.CourseName)
	}
	if automatic {
		fmt.Fprintln(p.w, i18n.T(p.ctx, "ResultSubmittedAutomatically"))
	}

	verdict := i18n.T(p.ctx, "ResultFailed")
	if rep.Passed {
		verdict = i18n.T(p.ctx, "ResultPassed")
	}
	score := i18n.Td(p.ctx, "ResultScore", map[string]any{"Score": formatScore(rep.Score)})
	fmt.Fprintf(p.w, "%s  %s\n", p.paint(bandColor(rep.Band), score), p.paint(ansiBold, verdict))
	fmt.Fprintf(p.w, "%s %s\n", rep.Tier.Emoji, i18n.T(p.ctx, rep.Tier.MessageID))
	fmt.Fprintln(p.w, i18n.Td(p.ctx, "ResultCounts", map[string]any{
		"Correct": rep.Correct,
		"Wrong":   rep.Wrong,
		"Empty":   rep.Empty,
		"Total":   rep.Total,
	}))
	if rep.Total > 0 {
		fmt.Fprintln(p.w, p.progressBar(rep.Shares, 40))
	}
	if rep.HasFinishedAt() {
		fmt.Fprintln(p.w, i18n.Td(p.ctx, "ResultFinishedAt", map[string]any{"Time": p.when(rep.FinishedAt)}))
	}

	if len(rep.Rows) == 0 {
		return
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.paint(ansiBold, i18n.T(p.ctx, "ResultBreakdown")))
	for _, row := range rep.Rows {
		fmt.Fprintf(p.w, "%2d. [%s] %s\n", row.Number, p.status(row.Status), row.QuestionText)
		answer := row.StudentAnswer
		if answer == "" {
			answer = i18n.T(p.ctx, "ResultLeftBlank")
		}
		fmt.Fprintf(p.w, "    %s: %s\n", i18n.T(p.ctx, "ResultYourAnswer"), answer)
		if row.CorrectAnswer != "" {
			fmt.Fprintf(p.w, "    %s: %s\n", i18n.T(p.ctx, "ResultCorrectAnswer"), row.CorrectAnswer)
		}
	}
}

func (p *Printer) status(s result.Status) string {
	switch s {
	case result.StatusCorrect:
		return p.paint(ansiGreen, i18n.T(p.ctx, "StatusCorrect"))
	case result.StatusEmpty:
		return p.paint(ansiYellow, i18n.T(p.ctx, "StatusEmpty"))
	default:
		return p.paint(ansiRed, i18n.T(p.ctx, "StatusWrong"))
	}
}

// progressBar draws the correct, wrong and empty shares side by side.
func (p *Printer) progressBar(sh result.Shares, width int) string {
	correct := int(sh.Correct*float64(width) + 0.5)
	wrong := int(sh.Wrong*float64(width) + 0.5)
	if correct+wrong > width {
		wrong = width - correct
	}
	empty := width - correct - wrong
	return "[" + p.paint(ansiGreen, strings.Repeat("#", correct)) +
		p.paint(ansiRed, strings.Repeat("x", wrong)) +
		p.paint(ansiDim, strings.Repeat(".", empty)) + "]"
}

func bandColor(b result.Band) string {
	switch b {
	case result.BandHigh:
		return ansiGreen + ansiBold
	case result.BandMid:
		return ansiYellow + ansiBold
	default:
		return ansiRed + ansiBold
	}
}

func formatScore(score float64) string {
	return humanize.FtoaWithDigits(score, 2)
}

// when renders an absolute time with a relative hint.
func (p *Printer) when(t time.Time) string {
	return t.Format("2006-01-02 15:04") + " (" + humanize.RelTime(t, p.now(), "ago", "from now") + ")"
}

func (p *Printer) table(headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

// Courses prints a course listing.
func (p *Printer) Courses(courses []model.Course) {
	if len(courses) == 0 {
		p.Line("NoCourses")
		return
	}
	tw := p.table("ID", "CODE", "NAME", "TEACHER")
	for _, c := range courses {
		teacher := ""
		if c.Teacher != nil {
			teacher = c.Teacher.DisplayName()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Code, c.Name, teacher)
	}
	tw.Flush()
}

// Exams prints an exam listing.
func (p *Printer) Exams(exams []model.ExamSummary) {
	if len(exams) == 0 {
		p.Line("NoExams")
		return
	}
	tw := p.table("ID", "TITLE", "COURSE", "DURATION")
	for _, e := range exams {
		course := ""
		if e.Course != nil {
			course = e.Course.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Title, course,
			i18n.Tp(p.ctx, "MinutesCount", e.DurationMinutes))
	}
	tw.Flush()
}

// Results prints a result listing. Student names are shown when showStudent
// is set (teacher views).
func (p *Printer) Results(results []model.ResultSummary, showStudent bool) {
	if len(results) == 0 {
		p.Line("NoResults")
		return
	}
	headers := []string{"ID", "EXAM", "SCORE", "FINISHED"}
	if showStudent {
		headers = []string{"ID", "EXAM", "STUDENT", "SCORE", "FINISHED"}
	}
	tw := p.table(headers...)
	for _, r := range results {
		finished := "-"
		if r.FinishedAt.Valid() {
			finished = humanize.RelTime(r.FinishedAt.Time, p.now(), "ago", "from now")
		}
		score := formatScore(r.Score.Float())
		if showStudent {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.ExamTitle, r.StudentName, score, finished)
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.ExamTitle, score, finished)
		}
	}
	tw.Flush()
}

// Attempts prints the local attempt journal.
func (p *Printer) Attempts(attempts []model.Attempt) {
	if len(attempts) == 0 {
		p.Line("NoResults")
		return
	}
	tw := p.table("RESULT", "EXAM", "SCORE", "AUTO", "SUBMITTED")
	for _, a := range attempts {
		auto := ""
		if a.Automatic {
			auto = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ResultID, a.ExamTitle, formatScore(a.Score), auto,
			humanize.RelTime(a.SubmittedAt, p.now(), "ago", "from now"))
	}
	tw.Flush()
}
