package jpdata_test

import (
	"context"
	"testing"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/test"
)

func TestPipelineRun(t *testing.T) {
	p := jpdata.NewPipeline()
	p.ChunkSize = 2
	p.Workers = 3
	india, err := jpdata.ParseSubset("country:IN")
	test.ErrNil(t, err, "parsing subset")
	p.Subsets = append(p.Subsets, india)
	exp := test.NewMemExporter()

	res, err := p.Run(context.Background(), mustLoad(scenario()), exp)
	test.ErrNil(t, err, "running")
	test.MustBe(t, exp.Opened, []string{"enriched", "unreached", "country_in"})
	if len(exp.Committed) != 0 {
		t.Fatal("pipeline committed on its own")
	}
	test.ErrNil(t, exp.Commit(), "committing")

	test.MustBe(t, res.Datasets, []string{"enriched", "unreached", "country_in"})
	test.MustBe(t, res.Counts, map[string]int{"enriched": 3, "unreached": 2, "country_in": 1})
	test.MustBe(t, res.Sources, map[string]int{"people_groups": 3, "countries": 2, "languages": 1, "totals": 0})
	test.MustBe(t, keys(exp.Committed["enriched"]), []int64{1, 2, 3})
	test.MustBe(t, keys(exp.Committed["unreached"]), []int64{1, 3})
	test.MustBe(t, keys(exp.Committed["country_in"]), []int64{1})
	test.MustBe(t, res.Report.Country.String(), "2/3 (66.7%)")
	test.MustBe(t, res.Report.Country.UnresolvedKeys, []jpdata.RecordKey{{PeopleID: 3, CountryCode: "ZZ"}})
}

func TestPipelineStats(t *testing.T) {
	p := jpdata.NewPipeline()
	stats := test.NewRecordingStatter()
	p.Stats = stats

	_, err := p.Run(context.Background(), mustLoad(scenario()), test.NewMemExporter())
	test.ErrNil(t, err, "running")
	test.MustBe(t, stats.Counts, map[string]int64{"records.enriched": 3, "records.unreached": 2})
	test.MustBe(t, stats.Gauges, map[string]float64{"coverage.country": 66.67, "coverage.language": 100.0})
	if _, ok := stats.Timings["pipeline.run"]; !ok {
		t.Fatal("run was not timed")
	}
}

func TestPipelineDuplicateAbortsBeforeOutput(t *testing.T) {
	srcs := scenario()
	srcs.Countries = jpdata.NewSliceSource(country("IN", "India"), country("IN", "India"))
	exp := test.NewMemExporter()

	res, err := jpdata.NewPipeline().Run(context.Background(), mustLoad(srcs), exp)
	if !jpdata.IsDuplicateKey(err) {
		t.Fatalf("expected a duplicate key error, got %v", err)
	}
	if res != nil {
		t.Fatal("expected no result")
	}
	test.MustBe(t, len(exp.Opened), 0, "writers opened")
	test.MustBe(t, exp.Aborted, true, "exporter aborted")
}

func TestPipelineAllowDuplicates(t *testing.T) {
	srcs := scenario()
	srcs.Countries = jpdata.NewSliceSource(country("IN", "India"), country("IN", "Bharat"))
	p := jpdata.NewPipeline()
	p.AllowDuplicates = true
	exp := test.NewMemExporter()

	_, err := p.Run(context.Background(), mustLoad(srcs), exp)
	test.ErrNil(t, err, "running")
	test.ErrNil(t, exp.Commit(), "committing")
	test.MustBe(t, exp.Committed["enriched"][0].Country["name"], "Bharat")
}

func TestPipelineAbortsOnWriterFailure(t *testing.T) {
	exp := test.NewMemExporter()
	exp.FailWriter = "unreached"

	_, err := jpdata.NewPipeline().Run(context.Background(), mustLoad(scenario()), exp)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !exp.Aborted {
		t.Fatal("exporter was not aborted")
	}
}

func TestPipelineAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exp := test.NewMemExporter()

	_, err := jpdata.NewPipeline().Run(ctx, mustLoad(manyGroups(10)), exp)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !exp.Aborted {
		t.Fatal("exporter was not aborted")
	}
}

func TestPipelineConservesCounts(t *testing.T) {
	cols := mustLoad(manyGroups(1001))
	p := jpdata.NewPipeline()
	p.Subsets = append(p.Subsets, jpdata.Subset{Name: "reached", Predicate: jpdata.Not(jpdata.LeastReached())})

	res, err := p.Run(context.Background(), cols, test.NewMemExporter())
	test.ErrNil(t, err, "running")
	test.MustBe(t, res.Counts["enriched"], len(cols.PeopleGroups))
	test.MustBe(t, res.Counts["unreached"]+res.Counts["reached"], res.Counts["enriched"])
	test.MustBe(t, res.Report.Total, res.Counts["enriched"])
}

func TestNewMetadata(t *testing.T) {
	p := jpdata.NewPipeline()
	res, err := p.Run(context.Background(), mustLoad(scenario()), test.NewMemExporter())
	test.ErrNil(t, err, "running")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m := jpdata.NewMetadata(p, res, jpdata.MetadataOptions{
		JSON:         true,
		ParquetFiles: []string{"joshua_project_enriched.parquet", "joshua_project_unreached.parquet"},
	}, now)
	if m.RunID == "" {
		t.Fatal("no run id")
	}
	test.MustBe(t, m.GeneratedAt, now)
	test.MustBe(t, m.EnrichedDatasets["unreached"], jpdata.DatasetInfo{
		Records:           2,
		JSONFile:          "joshua_project_unreached.json",
		ParquetFile:       "joshua_project_unreached.parquet",
		PercentageOfTotal: 66.67,
	})
	test.MustBe(t, m.EnrichedDatasets["enriched"].PercentageOfTotal, 100.0)
	test.MustBe(t, m.EnrichmentDetails.CountryFields, 8)
	test.MustBe(t, m.EnrichmentDetails.LanguageFields, 15)
	test.MustBe(t, m.EnrichmentDetails.Subsets, []string{"unreached"})

	m = jpdata.NewMetadata(p, res, jpdata.MetadataOptions{Prefix: "jp", JSON: true}, now)
	test.MustBe(t, m.EnrichedDatasets["enriched"].JSONFile, "jp_enriched.json")
	test.MustBe(t, m.EnrichedDatasets["enriched"].ParquetFile, "")

	m = jpdata.NewMetadata(p, res, jpdata.MetadataOptions{ParquetFiles: []string{"joshua_project_enriched.parquet"}}, now)
	test.MustBe(t, m.EnrichedDatasets["enriched"].ParquetFile, "joshua_project_enriched.parquet")
	test.MustBe(t, m.EnrichedDatasets["unreached"], jpdata.DatasetInfo{Records: 2, PercentageOfTotal: 66.67}, "no file for an unwritten dataset")
}
