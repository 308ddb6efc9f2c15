package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts the same five-field expressions and descriptors as
// cron.New() without options.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// lookback windows tried in order when searching for the previous trigger.
var lookback = []time.Duration{
	time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	31 * 24 * time.Hour,
	366 * 24 * time.Hour,
}

type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

func (i TriggerInfo) String() string {
	if i.Last.IsZero() {
		return fmt.Sprintf("%q next at %s (in %s)", i.Expression, i.Next.Format(time.RFC3339), i.TimeUntilNext.Round(time.Second))
	}
	return fmt.Sprintf("%q next at %s (in %s), last at %s", i.Expression,
		i.Next.Format(time.RFC3339), i.TimeUntilNext.Round(time.Second), i.Last.Format(time.RFC3339))
}

// GetTriggerInfo returns the triggers of cronExpr around refTime. Last is
// zero when there was no trigger within the past year.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
		Last:       previous(schedule, refTime),
	}
	if !info.Last.IsZero() {
		info.TimeSinceLast = refTime.Sub(info.Last)
	}
	info.TimeUntilNext = info.Next.Sub(refTime)

	return info, nil
}

// previous finds the latest trigger at or before refTime by walking forward
// from progressively earlier starting points.
func previous(schedule cron.Schedule, refTime time.Time) time.Time {
	for _, window := range lookback {
		var last time.Time
		for t := schedule.Next(refTime.Add(-window)); !t.IsZero() && !t.After(refTime); t = schedule.Next(t) {
			last = t
		}
		if !last.IsZero() {
			return last
		}
	}
	return time.Time{}
}
