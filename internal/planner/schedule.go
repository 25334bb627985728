package planner

import (
	"context"
	"time"

	"github.com/planora/planora/internal/log"
)

// DetermineOptimalTime computes a start/end window of exactly durationMinutes
// on targetDate that fits around the given schedule slots. A zero targetDate
// means today. Returns nil when the gateway is unavailable or the model
// output cannot be validated; callers treat nil as "could not schedule
// automatically" and fall back on their own.
//
// Conflict avoidance is a prompted instruction: the model's answer is
// forwarded after date and duration correction, without a post-hoc overlap
// check against slots.
func (p *Planner) DetermineOptimalTime(ctx context.Context, taskText string, durationMinutes int, slots []ScheduleSlot, note string, targetDate time.Time) *Interval {
	logger := p.logger.WithValues(log.Kv{"op": "optimal-time", "task": taskText})

	if p.gen == nil {
		logger.Warningf("no model gateway configured, skipping optimal time")
		return nil
	}
	if durationMinutes <= 0 {
		logger.Warningf("invalid duration %d minutes", durationMinutes)
		return nil
	}

	if targetDate.IsZero() {
		targetDate = p.now()
	}
	targetDate = midnight(targetDate, p.loc)

	prompt := buildOptimalTimePrompt(taskText, durationMinutes, slots, note, targetDate, p.loc)
	logger.Debugf("built optimal-time prompt (%d chars, %d busy slots)", len(prompt), len(slots))

	raw, err := p.gen.Generate(ctx, prompt, true)
	if err != nil {
		logger.Errorf("optimal-time generation failed: %v", err)
		return nil
	}
	logger.Debugf("model response preview: %s", preview(raw, 200))

	interval := parseOptimalTimeResponse(raw, durationMinutes, targetDate, p.loc, logger)
	if interval == nil {
		logger.Warningf("optimal-time response could not be validated")
		return nil
	}

	logger.Infof("optimal time: %s - %s",
		interval.StartTime.Format(time.RFC3339),
		interval.EndTime.Format(time.RFC3339))
	return interval
}

// midnight returns t's calendar date at 00:00 in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
