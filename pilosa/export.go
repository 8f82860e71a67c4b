package pilosa

import (
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/mmcloughlin/geohash"
	"github.com/pkg/errors"
)

// Field names of the people group index.
const (
	FieldCountry      = "country"
	FieldLanguage     = "language"
	FieldReligion     = "religion"
	FieldLeastReached = "least_reached"
	FieldFrontier     = "frontier"
	FieldGeohash      = "geohash"
	FieldUnresolved   = "unresolved"
	FieldPopulation   = "population"
	FieldJPScale      = "jpscale"
)

// Exporter indexes the enriched dataset. Subsets are not indexed since they
// are queries over the same columns. Pilosa has no transactions, so Abort
// cannot take back what was already imported.
type Exporter struct {
	idx       Indexer
	columns   jpdata.ColumnMapper
	precision uint
	log       jpdata.Logger
}

// ExpOption is a functional option for the pilosa Exporter.
type ExpOption func(e *Exporter)

// OptExpGeohashPrecision sets the number of geohash characters indexed.
func OptExpGeohashPrecision(n uint) ExpOption {
	return func(e *Exporter) {
		e.precision = n
	}
}

// OptExpLogger sets the logger.
func OptExpLogger(log jpdata.Logger) ExpOption {
	return func(e *Exporter) {
		e.log = log
	}
}

// NewExporter returns an Exporter feeding idx. Each record's column comes
// from columns.
func NewExporter(idx Indexer, columns jpdata.ColumnMapper, opts ...ExpOption) *Exporter {
	e := &Exporter{
		idx:       idx,
		columns:   columns,
		precision: 6,
		log:       jpdata.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Writer implements jpdata.Exporter.
func (e *Exporter) Writer(dataset string) (jpdata.RecordWriter, error) {
	if dataset != jpdata.DatasetEnriched {
		return jpdata.DiscardWriter{}, nil
	}
	return &recordWriter{exp: e}, nil
}

// Commit implements jpdata.Exporter by waiting for the imports to finish.
func (e *Exporter) Commit() error {
	return errors.Wrap(e.idx.Close(), "finishing pilosa import")
}

// Abort implements jpdata.Exporter. Records already sent stay indexed.
func (e *Exporter) Abort() error {
	e.log.Printf("pilosa import aborted; records already indexed are kept")
	return e.idx.Close()
}

type recordWriter struct {
	exp *Exporter
	n   int
}

func flag(b *bool) string {
	if *b {
		return "Y"
	}
	return "N"
}

func (w *recordWriter) Write(e *jpdata.Enriched) error {
	key := e.Key()
	col, err := w.exp.columns.ColumnID(key)
	if err != nil {
		return errors.Wrapf(err, "allocating column for %s", key)
	}
	idx, g := w.exp.idx, e.Group
	idx.AddColumn(FieldCountry, col, g.CountryCode)
	if g.LanguageCode != "" {
		idx.AddColumn(FieldLanguage, col, g.LanguageCode)
	}
	if g.PrimaryReligion != "" {
		idx.AddColumn(FieldReligion, col, g.PrimaryReligion)
	}
	if g.LeastReached != nil {
		idx.AddColumn(FieldLeastReached, col, flag(g.LeastReached))
	}
	if g.Frontier != nil {
		idx.AddColumn(FieldFrontier, col, flag(g.Frontier))
	}
	if g.Latitude != nil && g.Longitude != nil && w.exp.precision > 0 {
		idx.AddColumn(FieldGeohash, col, geohash.EncodeWithPrecision(*g.Latitude, *g.Longitude, w.exp.precision))
	}
	if e.Country == nil {
		idx.AddColumn(FieldUnresolved, col, FieldCountry)
	}
	if g.LanguageCode != "" && e.Language == nil {
		idx.AddColumn(FieldUnresolved, col, FieldLanguage)
	}
	if g.Population != nil && *g.Population >= 0 {
		idx.AddValue(FieldPopulation, col, *g.Population)
	}
	if g.JPScale != nil {
		idx.AddValue(FieldJPScale, col, *g.JPScale)
	}
	w.n++
	return nil
}

func (w *recordWriter) Close() error {
	w.exp.log.Debugf("sent %d records to pilosa", w.n)
	return nil
}
