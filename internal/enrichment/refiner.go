package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/gigboard/gigboard/internal/models"
)

// CandidateDateRefiner adapts a DateInterpreter to the consolidation
// engine's refinement hook. It mutates candidates in place: a concrete date
// becomes StartsAt, a recurrence becomes RecurrencePattern. An empty
// interpretation leaves the candidate as-is.
type CandidateDateRefiner struct {
	interpreter DateInterpreter
	now         func() time.Time
}

func NewCandidateDateRefiner(interpreter DateInterpreter) *CandidateDateRefiner {
	return &CandidateDateRefiner{interpreter: interpreter, now: time.Now}
}

// SetClock overrides the reference clock. Tests only.
func (r *CandidateDateRefiner) SetClock(now func() time.Time) {
	r.now = now
}

func (r *CandidateDateRefiner) Refine(ctx context.Context, candidate *models.CandidateEvent) error {
	interpretation, err := r.interpreter.Interpret(ctx, candidate.RawDateString, r.now())
	if err != nil {
		return fmt.Errorf("interpret %q: %w", candidate.RawDateString, err)
	}

	switch {
	case len(interpretation.Dates) > 0:
		startsAt, err := combineDateTime(interpretation.Dates[0], interpretation.Time)
		if err != nil {
			return fmt.Errorf("interpretation produced bad date: %w", err)
		}
		candidate.StartsAt = &startsAt
		if len(interpretation.Dates) == 1 {
			candidate.OccurrenceTypeHint = models.OccurrenceExplicit
		}
	case interpretation.Pattern != nil:
		candidate.RecurrencePattern = &models.RecurrencePattern{
			Frequency: interpretation.Pattern.Frequency,
			Weekday:   interpretation.Pattern.Weekday,
			Time:      interpretation.Time,
			Interval:  interpretation.Pattern.Interval,
		}
	}
	return nil
}

func combineDateTime(date, clock string) (time.Time, error) {
	if clock == "" {
		return time.Parse("2006-01-02", date)
	}
	return time.Parse("2006-01-02 15:04", date+" "+clock)
}
