// Package analysis aggregates raw findings into the scored summary reports
// are built from: deduplication, severity filtering, baseline subtraction,
// per-category tallies, and the weighted score with its letter grade.
package analysis

import (
	"sort"

	"github.com/kestrelworks/cmslens/internal/baseline"
	"github.com/kestrelworks/cmslens/internal/rule"
)

// Options controls aggregation.
type Options struct {
	// MinSeverity drops findings below this level. Zero keeps everything.
	MinSeverity rule.Severity
	// Baseline, when set, removes findings that were already accepted.
	Baseline *baseline.Baseline
}

// CategoryTally counts findings of one category by severity.
type CategoryTally struct {
	Category string
	Critical int
	Warning  int
	Info     int
}

// Total returns the tally sum.
func (c CategoryTally) Total() int {
	return c.Critical + c.Warning + c.Info
}

// Summary is the aggregation result.
type Summary struct {
	Findings []rule.Finding

	Total      int
	Critical   int
	Warning    int
	Info       int
	Baselined  int
	Filtered   int
	Categories []CategoryTally

	Score int
	Grade string
}

// Aggregate dedupes, filters, and scores findings.
func Aggregate(findings []rule.Finding, opts Options) Summary {
	summary := Summary{}
	seen := map[string]struct{}{}
	tallies := map[string]*CategoryTally{}

	for _, f := range findings {
		fp := f.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		if opts.MinSeverity.Valid() && f.Severity < opts.MinSeverity {
			summary.Filtered++
			continue
		}
		if opts.Baseline.Match(f) {
			summary.Baselined++
			continue
		}

		summary.Findings = append(summary.Findings, f)
		summary.Total++
		tally, ok := tallies[f.Category]
		if !ok {
			tally = &CategoryTally{Category: f.Category}
			tallies[f.Category] = tally
		}
		switch f.Severity {
		case rule.SeverityCritical:
			summary.Critical++
			tally.Critical++
		case rule.SeverityWarning:
			summary.Warning++
			tally.Warning++
		case rule.SeverityInfo:
			summary.Info++
			tally.Info++
		}
	}

	for _, tally := range tallies {
		summary.Categories = append(summary.Categories, *tally)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Category < summary.Categories[j].Category
	})

	summary.Score = score(summary)
	summary.Grade = grade(summary.Score)
	return summary
}

// score starts from 100 and subtracts each finding's severity weight,
// flooring at zero.
func score(s Summary) int {
	penalty := s.Critical*rule.SeverityCritical.Weight() +
		s.Warning*rule.SeverityWarning.Weight() +
		s.Info*rule.SeverityInfo.Weight()
	if penalty >= 100 {
		return 0
	}
	return 100 - penalty
}

func grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	}
	return "F"
}
