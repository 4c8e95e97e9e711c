package weather

import (
	"fmt"
	"time"
)

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, s)
	}
	return t, nil
}

// ParseRange parses an inclusive-start, exclusive-end date range.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	f, err := ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !f.Before(t) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %s must be before to %s", ErrInvalidInput, from, to)
	}
	return f, t, nil
}

// YearlyChunks splits [from, to) into sub-ranges that never cross a calendar
// year. Every chunk except possibly the first starts on 1 January, which keeps
// each provider query within its one-year window limit.
func YearlyChunks(from, to time.Time) ([]DateChunk, error) {
	from, to = truncateDay(from), truncateDay(to)
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from %s must be before to %s",
			ErrInvalidInput, from.Format(DateLayout), to.Format(DateLayout))
	}

	var chunks []DateChunk
	start := from
	for {
		boundary := time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		if !boundary.Before(to) {
			if start.Before(to) {
				chunks = append(chunks, DateChunk{Start: start, End: to})
			}
			break
		}
		chunks = append(chunks, DateChunk{Start: start, End: boundary})
		start = boundary
	}
	return chunks, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
