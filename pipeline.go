package jpdata

import (
	"context"
	"runtime"
	"time"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the number of people groups joined and written at a
// time.
const DefaultChunkSize = 1000

// Pipeline joins loaded collections and streams the enriched records and
// every subset to an Exporter.
type Pipeline struct {
	Workers         int
	ChunkSize       int
	Embed           EmbedMode
	AllowDuplicates bool
	Subsets         []Subset

	Log   Logger
	Stats Statter
}

// NewPipeline returns a Pipeline with the default settings and the unreached
// subset.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Workers:   runtime.NumCPU(),
		ChunkSize: DefaultChunkSize,
		Embed:     EmbedReduced,
		Subsets:   []Subset{{Name: SubsetUnreached, Predicate: LeastReached()}},
		Log:       NopLogger{},
		Stats:     NopStatter{},
	}
}

// Result describes a completed run.
type Result struct {
	// Sources counts the records of each input collection.
	Sources map[string]int
	// Datasets counts the records written to each dataset. Datasets lists the
	// dataset names in the order they were opened.
	Counts   map[string]int
	Datasets []string

	Resolution *Resolution
	Report     *IntegrityReport
	Duration   time.Duration
}

// BuildIndexes indexes the countries and languages of cols with the
// pipeline's duplicate policy. Callers which set up expensive sinks can call
// it first so structural errors surface before any sink exists.
func (p *Pipeline) BuildIndexes(cols *Collections) (*Indexes, error) {
	log := p.Log
	if log == nil {
		log = NopLogger{}
	}
	idx, err := BuildIndexes(cols.Countries, cols.Languages,
		OptIndexAllowDuplicates(p.AllowDuplicates),
		OptIndexLogger(log))
	if err != nil {
		return nil, errors.Wrap(err, "building indexes")
	}
	log.Printf("indexed %d countries and %d languages", len(idx.Countries), len(idx.Languages))
	return idx, nil
}

// Run builds the indexes, joins every people group, and writes the
// "enriched" dataset plus one dataset per subset. Structural errors in the
// input are returned before any writer is opened. On any failure the
// exporter is aborted; on success the caller decides when to commit, so it
// can add documents of its own first.
func (p *Pipeline) Run(ctx context.Context, cols *Collections, exp Exporter) (*Result, error) {
	idx, err := p.BuildIndexes(cols)
	if err != nil {
		p.abort(exp)
		return nil, err
	}
	return p.RunIndexed(ctx, cols, idx, exp)
}

func (p *Pipeline) abort(exp Exporter) {
	if err := exp.Abort(); err != nil && p.Log != nil {
		p.Log.Printf("aborting export: %v", err)
	}
}

// RunIndexed is Run with indexes the caller already built from cols.
func (p *Pipeline) RunIndexed(ctx context.Context, cols *Collections, idx *Indexes, exp Exporter) (res *Result, err error) {
	start := time.Now()
	log, stats := p.Log, p.Stats
	if log == nil {
		log = NopLogger{}
	}
	if stats == nil {
		stats = NopStatter{}
	}
	defer func() {
		if err != nil {
			p.abort(exp)
			res = nil
		}
	}()

	res = &Result{
		Sources: map[string]int{
			CollectionPeopleGroups: len(cols.PeopleGroups),
			CollectionCountries:    len(cols.Countries),
			CollectionLanguages:    len(cols.Languages),
			CollectionTotals:       len(cols.Totals),
		},
		Counts:   make(map[string]int, len(p.Subsets)+1),
		Datasets: make([]string, 0, len(p.Subsets)+1),
	}

	writers := make([]RecordWriter, 0, len(p.Subsets)+1)
	open := func(name string) error {
		if _, ok := res.Counts[name]; ok {
			return errors.Errorf("dataset %q named twice", name)
		}
		w, err := exp.Writer(name)
		if err != nil {
			return errors.Wrapf(err, "opening writer for %s", name)
		}
		writers = append(writers, w)
		res.Counts[name] = 0
		res.Datasets = append(res.Datasets, name)
		return nil
	}
	if err = open(DatasetEnriched); err != nil {
		return nil, err
	}
	for _, s := range p.Subsets {
		if err = open(s.Name); err != nil {
			closeAll(writers)
			return nil, err
		}
	}

	joiner := NewJoiner(idx, p.Embed, OptJoinWorkers(p.Workers))
	chunkSize := p.ChunkSize
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	resolution, err := joiner.JoinChunks(ctx, cols.PeopleGroups, chunkSize, func(chunk []*Enriched) error {
		if err := writeAll(writers[0], chunk); err != nil {
			return errors.Wrap(err, DatasetEnriched)
		}
		res.Counts[DatasetEnriched] += len(chunk)
		for i, s := range p.Subsets {
			matched := Filter(chunk, s.Predicate)
			if err := writeAll(writers[i+1], matched); err != nil {
				return errors.Wrap(err, s.Name)
			}
			res.Counts[s.Name] += len(matched)
		}
		log.Debugf("wrote %d enriched records", res.Counts[DatasetEnriched])
		return nil
	})
	if err != nil {
		closeAll(writers)
		return nil, err
	}
	for i, w := range writers {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing %s", res.Datasets[i])
		}
	}
	if err != nil {
		return nil, err
	}

	res.Resolution = resolution
	res.Report = Report(resolution)
	res.Duration = time.Since(start)

	for _, name := range res.Datasets {
		stats.Count("records."+name, int64(res.Counts[name]), 1)
	}
	stats.Gauge("coverage.country", res.Report.Country.Percent, 1)
	stats.Gauge("coverage.language", res.Report.Language.Percent, 1)
	stats.Timing("pipeline.run", res.Duration, 1)
	log.Printf("enriched %d people groups in %v: %s", res.Counts[DatasetEnriched], res.Duration, res.Report)
	return res, nil
}

func writeAll(w RecordWriter, recs []*Enriched) error {
	for _, e := range recs {
		if err := w.Write(e); err != nil {
			return errors.Wrapf(err, "writing %s", e.Key())
		}
	}
	return nil
}

func closeAll(ws []RecordWriter) {
	for _, w := range ws {
		_ = w.Close()
	}
}
