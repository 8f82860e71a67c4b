package jpdata

import (
	"time"

	"github.com/google/uuid"
)

// MetadataFile is the name of the run summary document.
const MetadataFile = "enriched_metadata.json"

// TotalsFile is the name of the exported totals lookup document.
const TotalsFile = "joshua_project_totals_lookup.json"

// Metadata is the summary document written next to the datasets.
type Metadata struct {
	RunID             string                 `json:"run_id"`
	GeneratedAt       time.Time              `json:"generated_at"`
	SourceDatasets    map[string]int         `json:"source_datasets"`
	EnrichedDatasets  map[string]DatasetInfo `json:"enriched_datasets"`
	EnrichmentDetails EnrichmentDetails      `json:"enrichment_details"`
	Integrity         *IntegrityReport       `json:"integrity"`
}

// DatasetInfo describes one exported dataset.
type DatasetInfo struct {
	Records           int     `json:"records"`
	JSONFile          string  `json:"json_file,omitempty"`
	ParquetFile       string  `json:"parquet_file,omitempty"`
	PercentageOfTotal float64 `json:"percentage_of_total"`
}

// EnrichmentDetails records how the datasets were built.
type EnrichmentDetails struct {
	EmbedMode       EmbedMode `json:"embed_mode"`
	AddedFields     []string  `json:"added_fields"`
	CountryFields   int       `json:"country_fields,omitempty"`
	LanguageFields  int       `json:"language_fields,omitempty"`
	AllowDuplicates bool      `json:"allow_duplicates"`
	Subsets         []string  `json:"subsets"`
}

// MetadataOptions says which files were written. Every dataset has a json
// file when JSON is set; ParquetFiles lists the Parquet files which exist,
// since an empty dataset has none.
type MetadataOptions struct {
	Prefix       string
	JSON         bool
	ParquetFiles []string
}

// NewMetadata summarizes a run. generatedAt is passed in so callers control
// the clock.
func NewMetadata(p *Pipeline, res *Result, opts MetadataOptions, generatedAt time.Time) *Metadata {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	m := &Metadata{
		RunID:            uuid.New().String(),
		GeneratedAt:      generatedAt,
		SourceDatasets:   res.Sources,
		EnrichedDatasets: make(map[string]DatasetInfo, len(res.Datasets)),
		Integrity:        res.Report,
	}
	parquet := make(map[string]bool, len(opts.ParquetFiles))
	for _, f := range opts.ParquetFiles {
		parquet[f] = true
	}
	total := res.Counts[DatasetEnriched]
	for _, name := range res.Datasets {
		info := DatasetInfo{
			Records:           res.Counts[name],
			PercentageOfTotal: percent(res.Counts[name], total),
		}
		if opts.JSON {
			info.JSONFile = DatasetFile(prefix, name, "json")
		}
		if f := DatasetFile(prefix, name, "parquet"); parquet[f] {
			info.ParquetFile = f
		}
		m.EnrichedDatasets[name] = info
	}

	d := EnrichmentDetails{
		EmbedMode:       p.Embed,
		AddedFields:     []string{KeyCountryData, KeyLanguageData},
		AllowDuplicates: p.AllowDuplicates,
		Subsets:         make([]string, 0, len(p.Subsets)),
	}
	if p.Embed != EmbedFull {
		d.CountryFields, d.LanguageFields = len(countryProjection), len(languageProjection)
	}
	for _, s := range p.Subsets {
		d.Subsets = append(d.Subsets, s.Name)
	}
	m.EnrichmentDetails = d
	return m
}
