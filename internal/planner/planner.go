// Package planner implements the task-breakdown-and-scheduling engine: it
// turns a user task (optional time window, optional duration, optional note)
// into a validated, time-consistent ordered list of subtask proposals, and
// computes conflict-aware start/end windows against a day's existing
// commitments. All model output is validated and repaired before it leaves
// this package; the worst outcome of any call is an empty result, never an
// error surfaced to task creation.
package planner

import (
	"context"
	"time"

	"github.com/planora/planora/internal/log"
)

// SubtaskProposal is an unpersisted candidate child task produced by the
// breakdown engine. The caller turns proposals into stored tasks.
type SubtaskProposal struct {
	Text       string    `json:"text"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	OrderIndex int       `json:"order_index"`
}

// ScheduleSlot is an existing committed interval used as a conflict-avoidance
// hint when computing an optimal time. Text is only prompt context.
type ScheduleSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Text      string    `json:"text"`
}

// Interval is a start/end pair computed by the scheduling engine.
type Interval struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Generator produces raw model output for a prompt. Implemented by llm.Client;
// tests substitute stubs.
type Generator interface {
	Generate(ctx context.Context, prompt string, wantJSON bool) (string, error)
}

// Planner is the breakdown orchestrator. It holds no state across calls
// besides the generator handle.
type Planner struct {
	gen    Generator
	logger log.Logger
	loc    *time.Location
	now    func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the diagnostics logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Planner) { p.logger = logger }
}

// WithLocation sets the local timezone used for prompt construction and for
// interpreting zone-less datetimes in model output. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Planner) { p.loc = loc }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New creates a Planner. A nil generator is allowed and makes every
// operation degrade to its empty/nil outcome, which is how a missing API key
// is represented at wiring time.
func New(gen Generator, opts ...Option) *Planner {
	p := &Planner{
		gen:    gen,
		logger: log.Noop,
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithValues(log.Kv{"svc": "planner"})
	return p
}

// BreakDownTask decomposes taskText into an ordered sequence of time-boxed
// subtask proposals. start, end, and note are all optional. It never returns
// an error: any failure along prompt -> generate -> validate yields an empty
// list so task creation can proceed without subtasks.
func (p *Planner) BreakDownTask(ctx context.Context, taskText string, start, end *time.Time, note string) []SubtaskProposal {
	logger := p.logger.WithValues(log.Kv{"op": "breakdown", "task": taskText})

	if p.gen == nil {
		logger.Warningf("no model gateway configured, skipping breakdown")
		return nil
	}

	base := p.now()
	if start != nil {
		base = *start
	}
	base = base.In(p.loc)

	prompt := buildBreakdownPrompt(taskText, start, end, note, base, p.loc)
	logger.Debugf("built breakdown prompt (%d chars)", len(prompt))

	raw, err := p.gen.Generate(ctx, prompt, true)
	if err != nil {
		logger.Errorf("breakdown generation failed: %v", err)
		return nil
	}
	logger.Debugf("model response preview: %s", preview(raw, 200))

	proposals := parseBreakdownResponse(raw, p.loc, logger)
	logger.Infof("breakdown produced %d subtasks", len(proposals))
	if len(proposals) > 0 {
		logger.Debugf("first subtask: %q %s - %s",
			proposals[0].Text,
			proposals[0].StartTime.Format(time.RFC3339),
			proposals[0].EndTime.Format(time.RFC3339))
	}

	return proposals
}

// preview truncates s for log output.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
