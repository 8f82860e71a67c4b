package api

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/boltdb"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/pkg/errors"
)

// MetadataFile is the fetch summary written next to the datasets.
const MetadataFile = "dataset_metadata.json"

// DatasetMetadata describes one fetched dataset in MetadataFile.
type DatasetMetadata struct {
	File        string `json:"file"`
	Records     int    `json:"records"`
	Fetched     string `json:"fetched"`
	Endpoint    string `json:"endpoint"`
	Description string `json:"description"`
}

// Main holds the options for downloading the Joshua Project collections.
type Main struct {
	APIKey    string        `help:"Joshua Project API key. Required unless reading from the cache."`
	BaseURL   string        `help:"Root URL of the Joshua Project API."`
	OutputDir string        `help:"Directory the datasets and dataset_metadata.json are written to."`
	Datasets  []string      `help:"Comma separated datasets to fetch (people_groups, countries, languages, totals)."`
	Limit     int           `help:"Value of the limit query parameter."`
	Timeout   time.Duration `help:"Timeout of each request."`
	Interval  time.Duration `help:"Minimum time between requests."`
	Retries   int           `help:"Number of times a failed request is retried."`
	Backoff   time.Duration `help:"Delay before the first retry. Doubles on each attempt."`
	CacheFile string        `help:"Bolt file where raw responses are kept. Empty disables the cache."`
	FromCache bool          `help:"Read the latest cached responses instead of calling the API."`
	Keep      int           `help:"Cached responses kept per dataset. 0 keeps all of them."`

	Log jpdata.Logger `flag:"-"`
	// Now is the clock used for fetch times.
	Now func() time.Time `flag:"-"`
}

// NewMain returns a new Main.
func NewMain() *Main {
	return &Main{
		BaseURL:   DefaultBaseURL,
		OutputDir: ".",
		Datasets:  []string{"people_groups", "countries", "languages", "totals"},
		Limit:     DefaultLimit,
		Timeout:   30 * time.Second,
		Interval:  500 * time.Millisecond,
		Retries:   3,
		Backoff:   time.Second,
		Keep:      8,
		Log:       jpdata.NopLogger{},
		Now:       time.Now,
	}
}

// Run fetches with a background context.
func (m *Main) Run() error {
	return m.RunContext(context.Background())
}

// RunContext fetches every configured dataset and writes it to OutputDir.
// Either every dataset is written or none is.
func (m *Main) RunContext(ctx context.Context) error {
	if m.Log == nil {
		m.Log = jpdata.NopLogger{}
	}
	if m.Now == nil {
		m.Now = time.Now
	}
	dss := make([]Dataset, 0, len(m.Datasets))
	for _, name := range m.Datasets {
		ds, ok := DatasetByName(strings.TrimSpace(name))
		if !ok {
			return errors.Errorf("unknown dataset %q", name)
		}
		dss = append(dss, ds)
	}

	var cache *boltdb.Cache
	if m.CacheFile != "" {
		var err error
		cache, err = boltdb.Open(m.CacheFile)
		if err != nil {
			return errors.Wrap(err, "opening cache")
		}
		defer cache.Close()
	} else if m.FromCache {
		return errors.New("reading from the cache needs a cache file")
	}

	var client *Client
	if !m.FromCache {
		var err error
		client, err = NewClient(m.APIKey,
			OptClientBaseURL(m.BaseURL),
			OptClientLimit(m.Limit),
			OptClientTimeout(m.Timeout),
			OptClientInterval(m.Interval),
			OptClientRetries(m.Retries, m.Backoff),
			OptClientLogger(m.Log))
		if err != nil {
			return err
		}
	}

	exp, err := json.NewExporter(m.OutputDir, json.OptExpLogger(m.Log))
	if err != nil {
		return err
	}
	meta, err := readMetadata(filepath.Join(m.OutputDir, MetadataFile))
	if err != nil {
		return err
	}
	for _, ds := range dss {
		var resp *Response
		if m.FromCache {
			resp, err = m.fromCache(cache, ds)
		} else {
			resp, err = client.Fetch(ctx, ds)
		}
		if err == nil {
			err = exp.WriteDocument(ds.File, resp.Records)
		}
		if err != nil {
			if aerr := exp.Abort(); aerr != nil {
				m.Log.Printf("aborting: %v", aerr)
			}
			return err
		}
		if cache != nil && !m.FromCache {
			m.snapshot(cache, resp)
		}
		meta[ds.Name] = DatasetMetadata{
			File:        ds.File,
			Records:     len(resp.Records),
			Fetched:     resp.FetchedAt.Format("2006-01-02"),
			Endpoint:    "/v1/" + ds.Endpoint,
			Description: ds.Description,
		}
		m.Log.Printf("%s: %d records", ds.Name, len(resp.Records))
	}
	if err := exp.WriteDocument(MetadataFile, meta); err != nil {
		exp.Abort()
		return err
	}
	return exp.Commit()
}

func (m *Main) fromCache(cache *boltdb.Cache, ds Dataset) (*Response, error) {
	snap, err := cache.Latest(ds.Name, time.Time{})
	if err != nil {
		return nil, errors.Wrapf(err, "reading cached %s", ds.Name)
	}
	recs, err := Decode(ds, snap.Body, m.Log)
	if err != nil {
		return nil, err
	}
	m.Log.Printf("using %s cached at %s", ds.Name, snap.FetchedAt.Format(time.RFC3339))
	return &Response{Dataset: ds, Records: recs, Body: snap.Body, FetchedAt: snap.FetchedAt}, nil
}

// snapshot keeps the raw body. A cache failure is logged and does not stop
// the fetch.
func (m *Main) snapshot(cache *boltdb.Cache, resp *Response) {
	if err := cache.Put(resp.Dataset.Name, m.Now(), resp.Body); err != nil {
		m.Log.Printf("caching %s: %v", resp.Dataset.Name, err)
		return
	}
	if m.Keep > 0 {
		n, err := cache.Prune(resp.Dataset.Name, m.Keep)
		if err != nil {
			m.Log.Printf("pruning %s cache: %v", resp.Dataset.Name, err)
		} else if n > 0 {
			m.Log.Debugf("pruned %d cached %s responses", n, resp.Dataset.Name)
		}
	}
}

// readMetadata loads an existing MetadataFile so datasets which are not
// refetched keep their entries.
func readMetadata(path string) (map[string]DatasetMetadata, error) {
	meta := make(map[string]DatasetMetadata)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return meta, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if err := gojson.Unmarshal(b, &meta); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return meta, nil
}
