package planner

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/planora/planora/internal/log"
)

// breakdownEnvelope is the JSON object the model is asked to return for a
// breakdown. Some models answer under "tasks" instead of "subtasks". Elements
// stay raw so one bad entry cannot sink the rest of the array.
type breakdownEnvelope struct {
	Subtasks []json.RawMessage `json:"subtasks"`
	Tasks    []json.RawMessage `json:"tasks"`
}

// rawSubtask keeps order_index raw so both numeric and string forms coerce.
type rawSubtask struct {
	Text       string          `json:"text"`
	StartTime  string          `json:"start_time"`
	EndTime    string          `json:"end_time"`
	OrderIndex json.RawMessage `json:"order_index"`
}

// optimalTimeEnvelope is the JSON object expected from optimal-time mode.
type optimalTimeEnvelope struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// instantLayouts are the accepted datetime shapes, tried in order. Zone-less
// layouts are interpreted in the process's local zone: the prompt instructs
// the model to emit literal local times without an offset.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseBreakdownResponse validates and normalizes a raw breakdown response.
// It never fails: malformed input yields an empty list, malformed entries are
// dropped one by one with a diagnostic, and the survivors come back sorted
// ascending by order index.
func parseBreakdownResponse(raw string, loc *time.Location, logger log.Logger) []SubtaskProposal {
	jsonStr, ok := extractJSONObject(raw)
	if !ok {
		logger.Warningf("no JSON object found in response: %s", preview(raw, 200))
		return nil
	}

	var envelope breakdownEnvelope
	if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
		logger.Warningf("unparseable breakdown JSON: %v (%s)", err, preview(jsonStr, 200))
		return nil
	}

	entries := envelope.Subtasks
	if entries == nil {
		entries = envelope.Tasks
	}
	if entries == nil {
		logger.Warningf("breakdown response has no subtasks array: %s", preview(jsonStr, 200))
		return nil
	}

	proposals := make([]SubtaskProposal, 0, len(entries))
	for i, rawEntry := range entries {
		var entry rawSubtask
		if err := json.Unmarshal(rawEntry, &entry); err != nil {
			logger.Warningf("dropping subtask %d: not a valid subtask object: %v", i, err)
			continue
		}

		text := strings.TrimSpace(entry.Text)
		if text == "" || entry.StartTime == "" || entry.EndTime == "" || len(entry.OrderIndex) == 0 {
			logger.Warningf("dropping subtask %d: missing required fields (text=%q start=%q end=%q)",
				i, entry.Text, entry.StartTime, entry.EndTime)
			continue
		}

		start, err := parseInstant(entry.StartTime, loc)
		if err != nil {
			logger.Warningf("dropping subtask %d (%q): bad start_time %q: %v", i, text, entry.StartTime, err)
			continue
		}
		end, err := parseInstant(entry.EndTime, loc)
		if err != nil {
			logger.Warningf("dropping subtask %d (%q): bad end_time %q: %v", i, text, entry.EndTime, err)
			continue
		}

		orderIndex, err := coerceInt(entry.OrderIndex)
		if err != nil {
			logger.Warningf("dropping subtask %d (%q): bad order_index %s: %v", i, text, entry.OrderIndex, err)
			continue
		}

		proposals = append(proposals, SubtaskProposal{
			Text:       text,
			StartTime:  start,
			EndTime:    end,
			OrderIndex: orderIndex,
		})
	}

	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].OrderIndex < proposals[j].OrderIndex
	})

	return proposals
}

// parseOptimalTimeResponse validates an optimal-time response and corrects
// it: the model is trusted for the clock time only, so the calendar day is
// forced to targetDate, and an interval whose length deviates from the
// requested duration by more than a minute gets its end recomputed as
// start + duration. Returns nil on any parse failure.
func parseOptimalTimeResponse(raw string, durationMinutes int, targetDate time.Time, loc *time.Location, logger log.Logger) *Interval {
	jsonStr, ok := extractJSONObject(raw)
	if !ok {
		logger.Warningf("no JSON object found in response: %s", preview(raw, 200))
		return nil
	}

	var envelope optimalTimeEnvelope
	if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
		logger.Warningf("unparseable optimal-time JSON: %v (%s)", err, preview(jsonStr, 200))
		return nil
	}
	if envelope.StartTime == "" || envelope.EndTime == "" {
		logger.Warningf("optimal-time response missing start_time or end_time: %s", preview(jsonStr, 200))
		return nil
	}

	start, err := parseInstant(envelope.StartTime, loc)
	if err != nil {
		logger.Warningf("bad optimal-time start_time %q: %v", envelope.StartTime, err)
		return nil
	}
	end, err := parseInstant(envelope.EndTime, loc)
	if err != nil {
		logger.Warningf("bad optimal-time end_time %q: %v", envelope.EndTime, err)
		return nil
	}

	correctedStart := onDate(start, targetDate, loc)
	correctedEnd := onDate(end, targetDate, loc)
	if !correctedStart.Equal(start) || !correctedEnd.Equal(end) {
		logger.Warningf("model returned wrong date, forcing %s (got %s - %s)",
			targetDate.In(loc).Format("2006-01-02"),
			start.Format(time.RFC3339),
			end.Format(time.RFC3339))
	}

	want := time.Duration(durationMinutes) * time.Minute
	if diff := correctedEnd.Sub(correctedStart) - want; diff > time.Minute || diff < -time.Minute {
		logger.Warningf("model interval is %v, forcing exact duration of %d minutes",
			correctedEnd.Sub(correctedStart), durationMinutes)
		correctedEnd = correctedStart.Add(want)
	}

	return &Interval{StartTime: correctedStart, EndTime: correctedEnd}
}

// onDate keeps t's clock time but moves it onto date's calendar day in loc.
func onDate(t, date time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	date = date.In(loc)
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// extractJSONObject returns the outermost {...} span of s, tolerating prose
// or code fences around it.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// parseInstant parses a datetime string as an absolute instant, assuming loc
// for zone-less forms.
func parseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)

	var lastErr error
	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// coerceInt accepts both JSON numbers and numeric strings.
func coerceInt(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return 0, strconv.ErrSyntax
	}

	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	// "3.0" style numbers still count as integers.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
