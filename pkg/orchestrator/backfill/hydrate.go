package backfill

import (
	"fmt"
	"strings"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// FormatDate renders the interval-aware {{DATE}} token: YYYYMMDD for day,
// YYYYMMDD_HHmm for hour, YYYYMM for month, and year plus ISO week number
// for week.
func FormatDate(date time.Time, interval model.BackfillInterval) string {
	switch interval {
	case model.IntervalHour:
		return date.Format("20060102_1504")
	case model.IntervalMonth:
		return date.Format("200601")
	case model.IntervalWeek:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%dW%02d", year, week)
	default:
		return date.Format("20060102")
	}
}

// placeholders builds the substitution table for one date.
func placeholders(date time.Time, interval model.BackfillInterval) *strings.Replacer {
	return strings.NewReplacer(
		"{{DATE}}", FormatDate(date, interval),
		"{{ISO_DATE}}", date.Format("2006-01-02"),
		"{{YEAR}}", date.Format("2006"),
		"{{MONTH}}", date.Format("01"),
		"{{DAY}}", date.Format("02"),
	)
}

// HydrateJobs clones the template for one date: every job id gains a
// date-derived suffix so the same template yields disjoint ids per date, and
// placeholder tokens are substituted in names, dependency references and the
// string leaves of job config. Non-string config values pass through
// untouched.
func HydrateJobs(template []model.JobConfig, date time.Time, interval model.BackfillInterval) []model.JobConfig {
	suffix := FormatDate(date, interval)
	repl := placeholders(date, interval)
	out := make([]model.JobConfig, 0, len(template))
	for _, jc := range template {
		hydrated := jc.Clone()
		hydrated.ID = jc.ID + "_" + suffix
		hydrated.Name = repl.Replace(jc.Name)
		deps := make([]string, 0, len(jc.DependsOn))
		for _, dep := range jc.DependsOn {
			deps = append(deps, dep+"_"+suffix)
		}
		hydrated.DependsOn = deps
		hydrated.Config = hydrateValue(map[string]interface{}(hydrated.Config), repl).(map[string]interface{})
		out = append(out, hydrated)
	}
	return out
}

// hydrateValue walks a config tree substituting placeholders in string
// leaves. Maps and slices recurse; everything else is returned as-is.
func hydrateValue(v interface{}, repl *strings.Replacer) interface{} {
	switch t := v.(type) {
	case string:
		return repl.Replace(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, inner := range t {
			out[k] = hydrateValue(inner, repl)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, inner := range t {
			out[i] = hydrateValue(inner, repl)
		}
		return out
	default:
		return v
	}
}
