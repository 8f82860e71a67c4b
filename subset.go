package jpdata

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Predicate decides whether an enriched record belongs to a subset.
type Predicate func(e *Enriched) bool

// Filter returns the records matching p in their original relative order.
// records is not modified.
func Filter(records []*Enriched, p Predicate) []*Enriched {
	ret := make([]*Enriched, 0)
	for _, e := range records {
		if p(e) {
			ret = append(ret, e)
		}
	}
	return ret
}

// Thresholds of the least-reached classification: evangelicals below 2% and
// Christian adherents below 5% of the population.
const (
	LeastReachedMaxEvangelical = 2.0
	LeastReachedMaxAdherents   = 5.0
)

// LeastReached matches records whose LeastReached flag is Y.
func LeastReached() Predicate {
	return func(e *Enriched) bool {
		return e.Group.LeastReached != nil && *e.Group.LeastReached
	}
}

// LeastReachedByThreshold classifies by percentages instead of the source
// flag. A record missing either percentage does not match.
func LeastReachedByThreshold(maxEvangelical, maxAdherents float64) Predicate {
	return func(e *Enriched) bool {
		g := e.Group
		if g.PercentEvangelical == nil || g.PercentAdherents == nil {
			return false
		}
		return *g.PercentEvangelical < maxEvangelical && *g.PercentAdherents < maxAdherents
	}
}

// LeastReachedOrThreshold uses the LeastReached flag when the record has one
// and falls back to the default thresholds when it does not.
func LeastReachedOrThreshold() Predicate {
	byThreshold := LeastReachedByThreshold(LeastReachedMaxEvangelical, LeastReachedMaxAdherents)
	return func(e *Enriched) bool {
		if e.Group.LeastReached != nil {
			return *e.Group.LeastReached
		}
		return byThreshold(e)
	}
}

// Frontier matches records whose Frontier flag is Y.
func Frontier() Predicate {
	return func(e *Enriched) bool {
		return e.Group.Frontier != nil && *e.Group.Frontier
	}
}

// ByCountry matches people groups in the country with the given ROG3.
func ByCountry(code string) Predicate {
	return func(e *Enriched) bool { return e.Group.CountryCode == code }
}

// ByLanguage matches people groups whose primary language has the given ROL3.
func ByLanguage(code string) Predicate {
	return func(e *Enriched) bool { return e.Group.LanguageCode == code }
}

// ByReligion matches people groups with the given primary religion, ignoring
// case.
func ByReligion(religion string) Predicate {
	return func(e *Enriched) bool { return strings.EqualFold(e.Group.PrimaryReligion, religion) }
}

// ByField matches records whose source field renders as value.
func ByField(key, value string) Predicate {
	return func(e *Enriched) bool {
		v, ok := e.Group.Fields[key]
		if !ok {
			return false
		}
		s, err := toString(v)
		return err == nil && s == value
	}
}

// And matches records matching all of ps.
func And(ps ...Predicate) Predicate {
	return func(e *Enriched) bool {
		for _, p := range ps {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Or matches records matching any of ps.
func Or(ps ...Predicate) Predicate {
	return func(e *Enriched) bool {
		for _, p := range ps {
			if p(e) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(e *Enriched) bool { return !p(e) }
}

// Subset is a named predicate. Its name becomes part of the exported file
// names.
type Subset struct {
	Name      string
	Predicate Predicate
}

// SubsetUnreached is the primary subset shipped with every run.
const SubsetUnreached = "unreached"

// DatasetEnriched names the full enriched collection.
const DatasetEnriched = "enriched"

var (
	nonName   = regexp.MustCompile(`[^a-z0-9]+`)
	validName = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// ParseSubset builds a Subset from its configuration string:
//
//	unreached              LeastReached flag is Y
//	unreached-threshold    evangelical < 2% and adherents < 5%
//	frontier               Frontier flag is Y
//	country:<ROG3>         people groups in a country
//	language:<ROL3>        people groups by primary language
//	religion:<name>        people groups by primary religion
//	field:<Key>=<Value>    any source field
//
// Any spec may be prefixed with "<name>=" to choose the dataset name, e.g.
// "india=country:IN". Names are used in file names and Kafka topics, so they
// may only contain lower case letters, digits, and underscores.
func ParseSubset(spec string) (Subset, error) {
	spec = strings.TrimSpace(spec)
	name := ""
	if i := strings.Index(spec, "="); i > 0 && !strings.HasPrefix(spec, "field:") {
		name, spec = spec[:i], spec[i+1:]
		if !validName.MatchString(name) {
			return Subset{}, errors.Errorf("subset name %q may only contain a-z, 0-9, and _", name)
		}
	}
	kind, arg := spec, ""
	if i := strings.Index(spec, ":"); i >= 0 {
		kind, arg = spec[:i], spec[i+1:]
	}
	var p Predicate
	switch kind {
	case SubsetUnreached:
		p = LeastReached()
	case "unreached-threshold":
		p = LeastReachedByThreshold(LeastReachedMaxEvangelical, LeastReachedMaxAdherents)
	case "frontier":
		p = Frontier()
	case "country":
		p = ByCountry(arg)
	case "language":
		p = ByLanguage(arg)
	case "religion":
		p = ByReligion(arg)
	case "field":
		i := strings.Index(arg, "=")
		if i < 1 {
			return Subset{}, errors.Errorf("subset %q: field subsets look like field:<Key>=<Value>", spec)
		}
		p = ByField(arg[:i], arg[i+1:])
	default:
		return Subset{}, errors.Errorf("unknown subset %q", spec)
	}
	switch kind {
	case "country", "language", "religion":
		if arg == "" {
			return Subset{}, errors.Errorf("subset %q needs a value after ':'", spec)
		}
	}
	if name == "" {
		name = strings.Trim(nonName.ReplaceAllString(strings.ToLower(spec), "_"), "_")
	}
	if name == DatasetEnriched {
		return Subset{}, errors.Errorf("subset name %q is reserved", name)
	}
	return Subset{Name: name, Predicate: p}, nil
}
