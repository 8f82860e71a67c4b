package json_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	gojson "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/lukeslp/joshua-project-data/test"
)

func enriched(t *testing.T) []*jpdata.Enriched {
	t.Helper()
	cols, err := jpdata.Load(jpdata.Sources{
		PeopleGroups: jpdata.NewSliceSource(
			map[string]interface{}{"PeopleID3": gojson.Number("1"), "ROG3": "IN", "ROL3": "hin", "Name": "A & B <c>"},
			map[string]interface{}{"PeopleID3": gojson.Number("2"), "ROG3": "ZZ", "ROL3": "hin"},
		),
		Countries: jpdata.NewSliceSource(map[string]interface{}{"ROG3": "IN", "Ctry": "India"}),
		Languages: jpdata.NewSliceSource(map[string]interface{}{"ROL3": "hin", "Language": "Hindi"}),
	})
	test.ErrNil(t, err, "loading")
	idx, err := jpdata.BuildIndexes(cols.Countries, cols.Languages)
	test.ErrNil(t, err, "indexing")
	res, err := jpdata.NewJoiner(idx, jpdata.EmbedReduced).Join(context.Background(), cols.PeopleGroups)
	test.ErrNil(t, err, "joining")
	return res.Records
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	infos, err := ioutil.ReadDir(dir)
	test.ErrNil(t, err, "reading dir")
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func TestExporter(t *testing.T) {
	dir := test.MustTempDir(t)
	exp, err := json.NewExporter(dir)
	test.ErrNil(t, err, "new exporter")
	recs := enriched(t)

	w, err := exp.Writer("enriched")
	test.ErrNil(t, err, "opening writer")
	empty, err := exp.Writer("unreached")
	test.ErrNil(t, err, "opening writer")
	for _, e := range recs {
		test.ErrNil(t, w.Write(e), "writing")
	}
	test.ErrNil(t, w.Close(), "closing")
	test.ErrNil(t, empty.Close(), "closing")
	test.ErrNil(t, exp.WriteDocument(jpdata.TotalsFile, map[string]interface{}{"PeopGroups": 17000}), "writing totals")

	for _, name := range listDir(t, dir) {
		if name[0] != '.' {
			t.Fatalf("%s visible before commit", name)
		}
	}
	test.ErrNil(t, exp.Commit(), "committing")
	test.MustBe(t, listDir(t, dir), []string{
		"joshua_project_enriched.json",
		"joshua_project_totals_lookup.json",
		"joshua_project_unreached.json",
	})

	got, err := ioutil.ReadFile(filepath.Join(dir, "joshua_project_enriched.json"))
	test.ErrNil(t, err, "reading")
	maps := make([]map[string]interface{}, len(recs))
	for i, e := range recs {
		maps[i] = e.Map()
	}
	want, err := gojson.MarshalIndentWithOption(maps, "", "  ", gojson.DisableHTMLEscape())
	test.ErrNil(t, err, "marshaling")
	test.MustBe(t, string(got), string(want)+"\n")

	got, err = ioutil.ReadFile(filepath.Join(dir, "joshua_project_unreached.json"))
	test.ErrNil(t, err, "reading")
	test.MustBe(t, string(got), "[]\n")
}

func TestExporterIsDeterministic(t *testing.T) {
	render := func() []byte {
		dir := test.MustTempDir(t)
		exp, err := json.NewExporter(dir, json.OptExpIndent(""))
		test.ErrNil(t, err, "new exporter")
		w, err := exp.Writer("enriched")
		test.ErrNil(t, err, "opening writer")
		for _, e := range enriched(t) {
			test.ErrNil(t, w.Write(e), "writing")
		}
		test.ErrNil(t, w.Close(), "closing")
		test.ErrNil(t, exp.Commit(), "committing")
		b, err := ioutil.ReadFile(filepath.Join(dir, "joshua_project_enriched.json"))
		test.ErrNil(t, err, "reading")
		return b
	}
	first := render()
	test.MustBe(t, string(render()), string(first))

	var back []map[string]interface{}
	test.ErrNil(t, gojson.Unmarshal(first, &back), "unmarshaling")
	test.MustBe(t, len(back), 2)
	test.MustBe(t, back[1]["country_data"], nil)
	test.MustBe(t, back[0]["Name"], "A & B <c>")
}

func TestExporterAbort(t *testing.T) {
	dir := test.MustTempDir(t)
	exp, err := json.NewExporter(dir)
	test.ErrNil(t, err, "new exporter")
	w, err := exp.Writer("enriched")
	test.ErrNil(t, err, "opening writer")
	test.ErrNil(t, w.Write(enriched(t)[0]), "writing")
	test.ErrNil(t, w.Close(), "closing")

	test.ErrNil(t, exp.Abort(), "aborting")
	test.MustBe(t, listDir(t, dir), []string{})
	if _, err := os.Stat(filepath.Join(dir, "joshua_project_enriched.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no output, got %v", err)
	}
}
