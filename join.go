package jpdata

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Keys under which joined records are embedded.
const (
	KeyCountryData  = "country_data"
	KeyLanguageData = "language_data"
)

// EmbedMode chooses what is copied into country_data and language_data.
type EmbedMode string

const (
	// EmbedReduced embeds the curated subset of fields under snake_case names.
	EmbedReduced EmbedMode = "reduced"
	// EmbedFull embeds every source field unchanged.
	EmbedFull EmbedMode = "full"
)

// ParseEmbedMode validates an embed mode name. The empty string is reduced.
func ParseEmbedMode(s string) (EmbedMode, error) {
	switch EmbedMode(s) {
	case "", EmbedReduced:
		return EmbedReduced, nil
	case EmbedFull:
		return EmbedFull, nil
	}
	return "", errors.Errorf("unknown embed mode %q (want %q or %q)", s, EmbedReduced, EmbedFull)
}

// projection maps an embedded key to the source field it is copied from.
type projection [][2]string

var countryProjection = projection{
	{"name", FieldCountryName},
	{"continent", FieldContinent},
	{"region", FieldRegionName},
	{"percent_christianity", FieldPercentChristianity},
	{"percent_evangelical", FieldPercentEvangelical},
	{"total_peoples", FieldCntPeoples},
	{"unreached_peoples", FieldCntPeoplesLR},
	{"jp_scale", FieldJPScaleCtry},
}

var languageProjection = projection{
	{"name", FieldLanguageName},
	{"hub_country", FieldHubCountry},
	{"bible_status", FieldBibleStatus},
	{"bible_year", FieldBibleYear},
	{"nt_year", FieldNTYear},
	{"portions_year", FieldPortionsYear},
	{"has_jesus_film", FieldHasJesusFilm},
	{"has_audio_recordings", FieldAudioRecordings},
	{"status", FieldStatus},
	{"latitude", "latitude"},
	{"longitude", "longitude"},
	{"glottocode", "glottocode"},
	{"family_name", "family_name"},
	{"family_id", "family_id"},
	{"macroarea", "macroarea"},
}

// apply copies the projected fields out of f. Missing source fields are
// embedded as null.
func (p projection) apply(f Fields) Fields {
	ret := make(Fields, len(p))
	for _, kv := range p {
		ret[kv[0]] = f[kv[1]]
	}
	return ret
}

// Enriched is a people group with its country and language embedded. A nil
// Country or Language is the absent marker for a key which did not resolve.
// Enriched records are never modified after the Joiner creates them, and the
// embedded Fields may be shared between records, so callers must treat all of
// it as read-only.
type Enriched struct {
	Group    *PeopleGroup
	Country  Fields
	Language Fields
}

// Key returns the people group's identity.
func (e *Enriched) Key() RecordKey { return e.Group.Key() }

// Map flattens the record into the document shape which is exported: every
// people group field plus country_data and language_data (null when absent).
func (e *Enriched) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(e.Group.Fields)+2)
	for k, v := range e.Group.Fields {
		m[k] = v
	}
	if e.Country != nil {
		m[KeyCountryData] = map[string]interface{}(e.Country)
	} else {
		m[KeyCountryData] = nil
	}
	if e.Language != nil {
		m[KeyLanguageData] = map[string]interface{}(e.Language)
	} else {
		m[KeyLanguageData] = nil
	}
	return m
}

// Resolution tracks which foreign keys failed to resolve, in input order.
type Resolution struct {
	Total               int
	UnresolvedCountries []RecordKey
	UnresolvedLanguages []RecordKey
	// AbsentLanguages are people groups which carry no ROL3 at all.
	AbsentLanguages []RecordKey
}

func (r *Resolution) add(recs []*Enriched) {
	for _, e := range recs {
		r.Total++
		if e.Country == nil {
			r.UnresolvedCountries = append(r.UnresolvedCountries, e.Key())
		}
		if e.Group.LanguageCode == "" {
			r.AbsentLanguages = append(r.AbsentLanguages, e.Key())
		} else if e.Language == nil {
			r.UnresolvedLanguages = append(r.UnresolvedLanguages, e.Key())
		}
	}
}

// JoinResult is the materialized output of Joiner.Join.
type JoinResult struct {
	Records []*Enriched
	Resolution
}

// Joiner embeds countries and languages into people groups.
type Joiner struct {
	countries map[string]Fields
	languages map[string]Fields
	workers   int
}

// JoinOption is a functional option for NewJoiner.
type JoinOption func(j *Joiner)

// OptJoinWorkers sets the number of goroutines used per chunk. Values below 1
// are ignored.
func OptJoinWorkers(n int) JoinOption {
	return func(j *Joiner) {
		if n > 0 {
			j.workers = n
		}
	}
}

// NewJoiner prepares the embedded form of every indexed record once, so each
// people group only costs two map lookups.
func NewJoiner(idx *Indexes, mode EmbedMode, opts ...JoinOption) *Joiner {
	j := &Joiner{
		countries: make(map[string]Fields, len(idx.Countries)),
		languages: make(map[string]Fields, len(idx.Languages)),
		workers:   runtime.NumCPU(),
	}
	for code, c := range idx.Countries {
		if mode == EmbedFull {
			j.countries[code] = c.Fields.Copy()
		} else {
			j.countries[code] = countryProjection.apply(c.Fields)
		}
	}
	for code, l := range idx.Languages {
		if mode == EmbedFull {
			j.languages[code] = l.Fields.Copy()
		} else {
			j.languages[code] = languageProjection.apply(l.Fields)
		}
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Enrich joins a single people group.
func (j *Joiner) Enrich(p *PeopleGroup) *Enriched {
	e := &Enriched{Group: p}
	if c, ok := j.countries[p.CountryCode]; ok {
		e.Country = c
	}
	if p.LanguageCode != "" {
		if l, ok := j.languages[p.LanguageCode]; ok {
			e.Language = l
		}
	}
	return e
}

// Join enriches every people group and returns the records in input order.
func (j *Joiner) Join(ctx context.Context, groups []*PeopleGroup) (*JoinResult, error) {
	res := &JoinResult{Records: make([]*Enriched, 0, len(groups))}
	r, err := j.JoinChunks(ctx, groups, len(groups), func(chunk []*Enriched) error {
		res.Records = append(res.Records, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Resolution = *r
	return res, nil
}

// JoinChunks enriches groups size records at a time, handing each chunk to fn
// in input order before starting the next. Within a chunk the work is spread
// over the Joiner's workers. Cancelling ctx stops the join between chunks;
// every chunk already handed to fn is complete.
func (j *Joiner) JoinChunks(ctx context.Context, groups []*PeopleGroup, size int, fn func(chunk []*Enriched) error) (*Resolution, error) {
	if size < 1 {
		size = 1
	}
	res := &Resolution{}
	for start := 0; start < len(groups); start += size {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "joining")
		}
		end := start + size
		if end > len(groups) {
			end = len(groups)
		}
		chunk := make([]*Enriched, end-start)
		if err := j.enrichChunk(ctx, groups[start:end], chunk); err != nil {
			return nil, err
		}
		res.add(chunk)
		if err := fn(chunk); err != nil {
			return nil, errors.Wrapf(err, "handling records %d-%d", start, end-1)
		}
	}
	return res, nil
}

// enrichChunk fills out[i] with the enriched form of in[i]. Each worker
// takes every workers'th record, so no two goroutines touch the same slot.
func (j *Joiner) enrichChunk(ctx context.Context, in []*PeopleGroup, out []*Enriched) error {
	workers := j.workers
	if workers > len(in) {
		workers = len(in)
	}
	if workers <= 1 {
		for i, p := range in {
			out[i] = j.Enrich(p)
		}
		return nil
	}
	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() error {
			for i := w; i < len(in); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = j.Enrich(in[i])
			}
			return nil
		})
	}
	return errors.Wrap(eg.Wait(), "enriching chunk")
}
