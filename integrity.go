package jpdata

import (
	"fmt"
	"math"
)

// KeyCoverage counts how one kind of foreign key resolved.
type KeyCoverage struct {
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	// Absent counts records which carry no code at all.
	Absent int `json:"absent"`
	// Percent is Resolved out of the total record count. An empty collection
	// is reported as fully resolved.
	Percent        float64     `json:"percent_resolved"`
	UnresolvedKeys []RecordKey `json:"unresolved_keys"`

	total int
}

// String renders the coverage as e.g. "2/3 (66.7%)".
func (k KeyCoverage) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", k.Resolved, k.total, k.Percent)
}

// IntegrityReport summarizes foreign key resolution for one run.
type IntegrityReport struct {
	Total    int         `json:"total_records"`
	Country  KeyCoverage `json:"country"`
	Language KeyCoverage `json:"language"`
}

// Report builds the integrity summary from a join's Resolution. It never
// fails: a run where nothing resolved is a valid report.
func Report(r *Resolution) *IntegrityReport {
	rep := &IntegrityReport{Total: r.Total}
	rep.Country = coverage(r.Total, r.UnresolvedCountries, 0)
	rep.Language = coverage(r.Total, r.UnresolvedLanguages, len(r.AbsentLanguages))
	return rep
}

func coverage(total int, unresolved []RecordKey, absent int) KeyCoverage {
	keys := make([]RecordKey, len(unresolved))
	copy(keys, unresolved)
	k := KeyCoverage{
		Resolved:       total - len(unresolved) - absent,
		Unresolved:     len(unresolved),
		Absent:         absent,
		UnresolvedKeys: keys,
		total:          total,
	}
	k.Percent = percent(k.Resolved, total)
	return k
}

// percent returns n out of total as a percentage rounded to two places. 0/0
// is 100.
func percent(n, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(10000*float64(n)/float64(total)) / 100
}

// String renders a one line summary.
func (r *IntegrityReport) String() string {
	return fmt.Sprintf("%d records, countries resolved %s, languages resolved %s (%d without a language code)",
		r.Total, r.Country, r.Language, r.Language.Absent)
}
