// Package enrich wires the loaders, the pipeline, and every export sink
// into the enrichment command.
package enrich

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/file"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/lukeslp/joshua-project-data/kafka"
	"github.com/lukeslp/joshua-project-data/leveldb"
	"github.com/lukeslp/joshua-project-data/metrics"
	"github.com/lukeslp/joshua-project-data/parquet"
	"github.com/lukeslp/joshua-project-data/pilosa"
	"github.com/lukeslp/joshua-project-data/viz"
	"github.com/pkg/errors"
)

// Main holds the options for an enrichment run.
type Main struct {
	InputDir         string   `help:"Directory holding the fetched collections."`
	PeopleGroupsFile string   `help:"People groups file, relative to the input directory."`
	CountriesFile    string   `help:"Countries file, relative to the input directory."`
	LanguagesFile    string   `help:"Languages file, relative to the input directory. The geo enriched default falls back to the plain languages file when it is missing."`
	TotalsFile       string   `help:"Totals file, relative to the input directory. Optional."`
	NDJSON           bool     `help:"Also accept inputs written as newline delimited json objects."`
	OutputDir        string   `help:"Directory the datasets are written to."`
	Prefix           string   `help:"Prefix of every output file name and Kafka topic."`
	Embed            string   `help:"What is embedded from countries and languages: reduced or full."`
	Subsets          []string `help:"Comma separated subsets to export, e.g. unreached,frontier,india=country:IN."`
	AllowDuplicates  bool     `help:"Let a repeated country or language code replace the earlier record instead of failing."`
	Workers          int      `help:"Goroutines used to join each chunk."`
	ChunkSize        int      `help:"People groups joined and written at a time."`

	JSON        bool   `help:"Write json datasets."`
	Compact     bool   `help:"Write json without indentation."`
	Parquet     bool   `help:"Write Parquet datasets."`
	Compression string `help:"Parquet compression codec (snappy, zstd, gzip, uncompressed)."`
	Viz         bool   `help:"Also write the compact visualization document."`

	PilosaHosts     []string `help:"Comma separated Pilosa hosts. Empty disables indexing."`
	PilosaIndex     string   `help:"Pilosa index name."`
	PilosaBatchSize int      `help:"Batch size for Pilosa imports."`
	ColumnsDir      string   `help:"LevelDB directory mapping people groups to Pilosa column ids. Empty keeps ids in memory."`

	KafkaHosts     []string `help:"Comma separated Kafka brokers. Empty disables publishing."`
	KafkaBatchSize int      `help:"Messages sent to Kafka at a time."`

	MetricsFile string `help:"Write Prometheus metrics for the run to this textfile."`

	Log jpdata.Logger `flag:"-"`
	// Now is the clock used for the metadata timestamp.
	Now func() time.Time `flag:"-"`
	// Result holds the outcome of the last successful run.
	Result *jpdata.Result `flag:"-"`

	// sinks can be set by tests to replace the Pilosa and Kafka exporters.
	sinks []jpdata.Exporter
}

// NewMain returns a Main with the default configuration.
func NewMain() *Main {
	in := file.DefaultInputs("")
	return &Main{
		InputDir:         ".",
		PeopleGroupsFile: in.PeopleGroups,
		CountriesFile:    in.Countries,
		LanguagesFile:    file.LanguagesGeoFile,
		TotalsFile:       in.Totals,
		OutputDir:        ".",
		Prefix:           jpdata.DefaultPrefix,
		Embed:            string(jpdata.EmbedReduced),
		Subsets:          []string{jpdata.SubsetUnreached},
		Workers:          runtime.NumCPU(),
		ChunkSize:        jpdata.DefaultChunkSize,
		JSON:             true,
		Parquet:          true,
		Compression:      "snappy",
		PilosaIndex:      "peoples",
		PilosaBatchSize:  10000,
		KafkaBatchSize:   500,
		Log:              jpdata.NopLogger{},
		Now:              time.Now,
	}
}

// Run enriches with a background context.
func (m *Main) Run() error {
	return m.RunContext(context.Background())
}

// RunContext loads the inputs, joins them, and writes every dataset to each
// configured sink. Local files appear only if the whole run succeeds,
// including delivery to Pilosa and Kafka.
func (m *Main) RunContext(ctx context.Context) (err error) {
	if m.Log == nil {
		m.Log = jpdata.NopLogger{}
	}
	if m.Now == nil {
		m.Now = time.Now
	}
	p, err := m.pipeline()
	if err != nil {
		return err
	}
	var coll *metrics.Collector
	if m.MetricsFile != "" {
		coll = metrics.NewCollector()
		p.Stats = coll
	}

	cols, err := m.load()
	if err != nil {
		return err
	}
	idx, err := p.BuildIndexes(cols)
	if err != nil {
		return err
	}

	docs, err := json.NewExporter(m.OutputDir,
		json.OptExpPrefix(m.Prefix),
		json.OptExpIndent(m.indent()),
		json.OptExpLogger(m.Log))
	if err != nil {
		return err
	}
	out, err := m.buildOutputs(docs)
	defer func() {
		for _, c := range out.closers {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	if err != nil {
		out.sinks.Abort()
		docs.Abort()
		return err
	}

	res, err := p.RunIndexed(ctx, cols, idx, out.sinks)
	if err != nil {
		if !m.JSON {
			docs.Abort()
		}
		return errors.Wrap(err, "running pipeline")
	}

	if err := m.writeDocuments(docs, out, p, res, cols); err != nil {
		out.sinks.Abort()
		if !m.JSON {
			docs.Abort()
		}
		return err
	}
	if err := out.sinks.Commit(); err != nil {
		if !m.JSON {
			docs.Abort()
		}
		return errors.Wrap(err, "committing")
	}
	if !m.JSON {
		if err := docs.Commit(); err != nil {
			return errors.Wrap(err, "committing documents")
		}
	}
	m.Result = res
	m.summarize(res)

	if coll != nil {
		if err := coll.WriteTextfile(m.MetricsFile); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
	}
	return nil
}

func (m *Main) indent() string {
	if m.Compact {
		return ""
	}
	return "  "
}

func (m *Main) pipeline() (*jpdata.Pipeline, error) {
	embed, err := jpdata.ParseEmbedMode(m.Embed)
	if err != nil {
		return nil, err
	}
	p := jpdata.NewPipeline()
	p.Embed = embed
	p.AllowDuplicates = m.AllowDuplicates
	p.Workers = m.Workers
	p.ChunkSize = m.ChunkSize
	p.Log = m.Log
	p.Subsets = make([]jpdata.Subset, 0, len(m.Subsets))
	for _, spec := range m.Subsets {
		if spec == "" {
			continue
		}
		s, err := jpdata.ParseSubset(spec)
		if err != nil {
			return nil, err
		}
		p.Subsets = append(p.Subsets, s)
	}
	return p, nil
}

func (m *Main) load() (*jpdata.Collections, error) {
	in := file.Inputs{
		Dir:          m.InputDir,
		PeopleGroups: m.PeopleGroupsFile,
		Countries:    m.CountriesFile,
		Languages:    m.LanguagesFile,
		Totals:       m.TotalsFile,
	}
	if in.Languages == file.LanguagesGeoFile && !in.Exists(in.Languages) {
		m.Log.Printf("%s not found, reading %s without coordinates or families", file.LanguagesGeoFile, file.LanguagesFile)
		in.Languages = file.LanguagesFile
	}
	srcs, closer := in.Open(func(r io.Reader) jpdata.Source { return json.NewSource(r, json.OptSrcNDJSON(m.NDJSON)) })
	defer closer.Close()
	cols, err := jpdata.Load(srcs)
	if err != nil {
		return nil, err
	}
	m.Log.Printf("loaded %d people groups, %d countries, %d languages, %d totals",
		len(cols.PeopleGroups), len(cols.Countries), len(cols.Languages), len(cols.Totals))
	return cols, nil
}

// outputs holds the sinks of a run. closers must be closed after the run
// whether or not it succeeded.
type outputs struct {
	sinks   jpdata.MultiExporter
	parquet *parquet.Exporter
	closers []io.Closer
}

// buildOutputs builds the sinks in commit order: Pilosa and Kafka first, since
// they cannot take back what they delivered, then the staged Parquet,
// visualization, and json files.
func (m *Main) buildOutputs(docs *json.Exporter) (*outputs, error) {
	out := &outputs{}
	switch {
	case m.sinks != nil:
		out.sinks = append(out.sinks, m.sinks...)
	default:
		if err := m.remoteSinks(out); err != nil {
			return out, err
		}
	}
	if m.Parquet {
		pq, err := parquet.NewExporter(m.OutputDir,
			parquet.OptExpPrefix(m.Prefix),
			parquet.OptExpCompression(m.Compression),
			parquet.OptExpLogger(m.Log))
		if err != nil {
			return out, err
		}
		out.parquet = pq
		out.sinks = append(out.sinks, pq)
	}
	if m.Viz {
		vz, err := viz.NewExporter(m.OutputDir, viz.OptExpClock(m.Now), viz.OptExpLogger(m.Log))
		if err != nil {
			return out, err
		}
		out.sinks = append(out.sinks, vz)
	}
	if m.JSON {
		out.sinks = append(out.sinks, docs)
	}
	if len(out.sinks) == 0 {
		return out, errors.New("no output enabled: enable json, parquet, viz, pilosa, or kafka")
	}
	return out, nil
}

func (m *Main) remoteSinks(out *outputs) error {
	if len(m.PilosaHosts) > 0 {
		var columns jpdata.ColumnMapper = jpdata.NewMapColumns()
		if m.ColumnsDir != "" {
			lc, err := leveldb.Open(m.ColumnsDir)
			if err != nil {
				return errors.Wrap(err, "opening column store")
			}
			out.closers = append(out.closers, lc)
			m.Log.Printf("column store %s holds %d people groups", m.ColumnsDir, lc.Len())
			columns = lc
		}
		idx, err := pilosa.Setup(m.PilosaHosts, m.PilosaIndex, m.PilosaBatchSize, m.Log)
		if err != nil {
			return errors.Wrap(err, "setting up Pilosa")
		}
		out.sinks = append(out.sinks, pilosa.NewExporter(idx, columns, pilosa.OptExpLogger(m.Log)))
	}
	if len(m.KafkaHosts) > 0 {
		producer, err := kafka.NewProducer(m.KafkaHosts)
		if err != nil {
			return err
		}
		out.sinks = append(out.sinks, kafka.NewExporter(producer,
			kafka.OptExpTopicPrefix(m.Prefix),
			kafka.OptExpBatchSize(m.KafkaBatchSize),
			kafka.OptExpLogger(m.Log)))
	}
	return nil
}

func (m *Main) writeDocuments(docs *json.Exporter, out *outputs, p *jpdata.Pipeline, res *jpdata.Result, cols *jpdata.Collections) error {
	if cols.Totals != nil {
		if err := docs.WriteDocument(jpdata.TotalsFile, cols.Totals); err != nil {
			return err
		}
	}
	opts := jpdata.MetadataOptions{Prefix: m.Prefix, JSON: m.JSON}
	if out.parquet != nil {
		opts.ParquetFiles = out.parquet.Written()
	}
	meta := jpdata.NewMetadata(p, res, opts, m.Now().UTC())
	return docs.WriteDocument(jpdata.MetadataFile, meta)
}

func (m *Main) summarize(res *jpdata.Result) {
	for _, name := range res.Datasets {
		m.Log.Printf("%s: %d records", name, res.Counts[name])
		if !m.JSON || !m.Parquet {
			continue
		}
		js, jerr := os.Stat(filepath.Join(m.OutputDir, jpdata.DatasetFile(m.Prefix, name, "json")))
		pq, perr := os.Stat(filepath.Join(m.OutputDir, jpdata.DatasetFile(m.Prefix, name, "parquet")))
		if jerr != nil || perr != nil || js.Size() == 0 {
			continue
		}
		m.Log.Printf("%s: parquet is %d bytes, %.1f%% smaller than json", name, pq.Size(), Savings(js.Size(), pq.Size()))
	}
	m.Log.Printf("integrity: %s", res.Report)
}

// Savings returns how much smaller compressed is than original, as a
// percentage.
func Savings(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	return 100 * (1 - float64(compressed)/float64(original))
}
