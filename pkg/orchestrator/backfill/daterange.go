// Package backfill replays a pipeline template once per date across a
// historical range, driving the execution engine in sequential batches of
// concurrently running dates.
package backfill

import (
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

// DateRange returns the inclusive sequence of instants from start to end
// stepped by the interval. Steps are calendar-aware and anchored on start:
// the i-th date is start advanced by i whole units, never start plus a fixed
// number of seconds. Month steps follow Go's AddDate normalization, so
// 2025-01-30 plus one month lands on 2025-03-02 rather than clamping to the
// end of February. A start after end yields an empty sequence.
func DateRange(start, end time.Time, interval model.BackfillInterval) ([]time.Time, error) {
	if !interval.Valid() {
		return nil, exception.NewConfigError(moduleName, "unsupported backfill interval", string(interval))
	}
	var dates []time.Time
	for i := 0; ; i++ {
		var d time.Time
		switch interval {
		case model.IntervalHour:
			d = start.Add(time.Duration(i) * time.Hour)
		case model.IntervalDay:
			d = start.AddDate(0, 0, i)
		case model.IntervalWeek:
			d = start.AddDate(0, 0, 7*i)
		case model.IntervalMonth:
			d = start.AddDate(0, i, 0)
		}
		if d.After(end) {
			return dates, nil
		}
		dates = append(dates, d)
	}
}
