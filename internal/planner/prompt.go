package planner

import (
	"fmt"
	"strings"
	"time"
)

// civilTimeLayout is the literal local-time format the model is told to emit.
// No timezone suffix: the model cannot be trusted to apply the correct
// offset, so the validator re-attaches the process zone on the way back in.
const civilTimeLayout = "2006-01-02T15:04:05"

// breakdownPrompt is the prompt template for decomposing a task into
// time-boxed subtasks.
const breakdownPrompt = `Break down the following task into an ordered list of smaller, time-boxed subtasks.

Task: "%s"%s%s

Time rules (follow all of them exactly):
- All times are local times in timezone %s (UTC%s). Today's date for this task is %s.
- Write every datetime as a literal local time with NO timezone suffix, in the format YYYY-MM-DDTHH:MM:SS, stamped with the date %s. Do not apply any UTC offset yourself.
- Every subtask needs a start_time and an end_time with start_time before end_time.
- Subtasks must be sequential: a subtask should not begin before the previous one ends.

Granularity rules:
- Produce between 5 and 15 subtasks.
- Each subtask is a coarse, meaningful action, not an atomic physical motion.
- Good granularity: "Pack gym bag and fill water bottle", "Review chapter 3 notes", "Warm up and stretch".
- Too fine, never do this: "Stand up", "Open the door", "Pick up a pen".

Return a JSON object with a "subtasks" array. Each element must have:
- text: a clear, actionable subtask description
- start_time: when the subtask starts (YYYY-MM-DDTHH:MM:SS)
- end_time: when the subtask ends (YYYY-MM-DDTHH:MM:SS)
- order_index: sequential number starting from 1

Example response format:
{
  "subtasks": [
    {"text": "Lay out workout clothes and pack bag", "start_time": "2024-01-15T05:30:00", "end_time": "2024-01-15T05:40:00", "order_index": 1},
    {"text": "Have a light breakfast", "start_time": "2024-01-15T05:40:00", "end_time": "2024-01-15T05:55:00", "order_index": 2},
    {"text": "Travel to the gym", "start_time": "2024-01-15T05:55:00", "end_time": "2024-01-15T06:15:00", "order_index": 3}
  ]
}

Ensure times are realistic and sequential, and factor in any note provided.`

// optimalTimePrompt is the prompt template for finding a free slot of an
// exact duration on a given day.
const optimalTimePrompt = `Find the best time slot for a new task on %s (timezone %s, UTC%s).

Task: "%s"
Required duration: exactly %d minutes.%s

Existing schedule for that day (busy intervals, the new task must not overlap any of them):
%s

Rules:
- The returned interval must be exactly %d minutes long, no more and no less.
- Both times must fall on the date %s.
- Do not overlap any busy interval listed above.
- Prefer a gap between existing tasks that fits the duration; if no gap fits, use the earliest available time after the last task of the day.
- Write times as literal local times with NO timezone suffix, format YYYY-MM-DDTHH:MM:SS.

Return a JSON object with exactly these two keys and nothing else:
{"start_time": "YYYY-MM-DDTHH:MM:SS", "end_time": "YYYY-MM-DDTHH:MM:SS"}`

// buildBreakdownPrompt renders the decompose-mode prompt. base carries the
// calendar date the subtasks are stamped with (the start time's date when a
// start is given, otherwise now).
func buildBreakdownPrompt(taskText string, start, end *time.Time, note string, base time.Time, loc *time.Location) string {
	timeContext := breakdownTimeContext(start, end, loc)
	noteContext := breakdownNoteContext(note)

	tzName, offset := zoneInfo(base, loc)
	baseDate := base.In(loc).Format("2006-01-02")

	return fmt.Sprintf(breakdownPrompt,
		taskText,
		timeContext,
		noteContext,
		tzName,
		offset,
		baseDate,
		baseDate,
	)
}

// breakdownTimeContext renders the window rules for whichever of start/end
// are present.
func breakdownTimeContext(start, end *time.Time, loc *time.Location) string {
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf(`

Task schedule:
- Starts: %s
- Ends: %s

Generate preparation subtasks strictly BEFORE the start time. Execution subtasks must lie between the start and end times. Never schedule anything after the end time.`,
			start.In(loc).Format(civilTimeLayout),
			end.In(loc).Format(civilTimeLayout))

	case start != nil:
		return fmt.Sprintf(`

Task start time: %s

Generate preparation subtasks strictly BEFORE the start time; execution begins at the start time.`,
			start.In(loc).Format(civilTimeLayout))

	case end != nil:
		return fmt.Sprintf(`

Task end time: %s

Preparation subtasks come before execution subtasks. Never schedule anything after the end time.`,
			end.In(loc).Format(civilTimeLayout))
	}

	return ""
}

func breakdownNoteContext(note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return ""
	}
	return fmt.Sprintf(`

Important note: %s

Factor this note into the breakdown. For example, if it mentions travel, include travel-time subtasks.`, note)
}

// buildOptimalTimePrompt renders the optimal-time-mode prompt. targetDate is
// expected at midnight in loc.
func buildOptimalTimePrompt(taskText string, durationMinutes int, slots []ScheduleSlot, note string, targetDate time.Time, loc *time.Location) string {
	tzName, offset := zoneInfo(targetDate, loc)
	dateStr := targetDate.In(loc).Format("2006-01-02")

	return fmt.Sprintf(optimalTimePrompt,
		dateStr,
		tzName,
		offset,
		taskText,
		durationMinutes,
		breakdownNoteContext(note),
		formatSlots(slots, loc),
		durationMinutes,
		dateStr,
	)
}

func formatSlots(slots []ScheduleSlot, loc *time.Location) string {
	if len(slots) == 0 {
		return "(no existing tasks, the whole day is free)"
	}

	var sb strings.Builder
	for _, slot := range slots {
		text := slot.Text
		if text == "" {
			text = "busy"
		}
		fmt.Fprintf(&sb, "- %s to %s: %s\n",
			slot.StartTime.In(loc).Format("15:04"),
			slot.EndTime.In(loc).Format("15:04"),
			text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// zoneInfo returns the zone abbreviation and the "+07:00"-style offset for t
// in loc.
func zoneInfo(t time.Time, loc *time.Location) (name, offset string) {
	t = t.In(loc)
	name, _ = t.Zone()
	return name, t.Format("-07:00")
}
