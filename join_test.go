package jpdata_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/test"
)

func mustJoin(t *testing.T, cols *jpdata.Collections, mode jpdata.EmbedMode, opts ...jpdata.JoinOption) *jpdata.JoinResult {
	t.Helper()
	idx, err := jpdata.BuildIndexes(cols.Countries, cols.Languages)
	test.ErrNil(t, err, "building indexes")
	res, err := jpdata.NewJoiner(idx, mode, opts...).Join(context.Background(), cols.PeopleGroups)
	test.ErrNil(t, err, "joining")
	return res
}

func TestJoinUnresolvedCountry(t *testing.T) {
	res := mustJoin(t, mustLoad(scenario()), jpdata.EmbedReduced)

	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(res.Records))
	}
	test.MustBe(t, res.Records[2].Country, jpdata.Fields(nil), "unresolved country")
	test.MustBe(t, res.UnresolvedCountries, []jpdata.RecordKey{{PeopleID: 3, CountryCode: "ZZ"}})
	test.MustBe(t, len(res.UnresolvedLanguages), 0)

	m := res.Records[2].Map()
	if v, ok := m[jpdata.KeyCountryData]; !ok || v != nil {
		t.Fatalf("expected explicit null country_data, got %v (present=%v)", v, ok)
	}
	if res.Records[0].Country["name"] != "India" {
		t.Fatalf("unexpected country for first record: %v", res.Records[0].Country)
	}

	rep := jpdata.Report(&res.Resolution)
	test.MustBe(t, rep.Country.String(), "2/3 (66.7%)")
	test.MustBe(t, rep.Country.Percent, 66.67)
	test.MustBe(t, rep.Language.String(), "3/3 (100.0%)")
}

func TestJoinEmpty(t *testing.T) {
	cols := mustLoad(sources(nil,
		[]interface{}{country("IN", "India")},
		[]interface{}{language("hin", "Hindi")}))
	res := mustJoin(t, cols, jpdata.EmbedReduced)

	test.MustBe(t, len(res.Records), 0)
	rep := jpdata.Report(&res.Resolution)
	test.MustBe(t, rep.Total, 0)
	test.MustBe(t, rep.Country.Percent, 100.0)
	test.MustBe(t, rep.Country.String(), "0/0 (100.0%)")
	test.MustBe(t, rep.Language.String(), "0/0 (100.0%)")
}

func TestJoinAbsentLanguage(t *testing.T) {
	cols := mustLoad(sources(
		[]interface{}{group(1, "IN", "", "Y"), group(2, "IN", "xyz", "Y")},
		[]interface{}{country("IN", "India")},
		[]interface{}{language("hin", "Hindi")}))
	res := mustJoin(t, cols, jpdata.EmbedReduced)

	for i, e := range res.Records {
		if e.Language != nil {
			t.Errorf("record %d: expected absent language, got %v", i, e.Language)
		}
		if v, ok := e.Map()[jpdata.KeyLanguageData]; !ok || v != nil {
			t.Errorf("record %d: expected null language_data", i)
		}
	}
	test.MustBe(t, res.AbsentLanguages, []jpdata.RecordKey{{PeopleID: 1, CountryCode: "IN"}})
	test.MustBe(t, res.UnresolvedLanguages, []jpdata.RecordKey{{PeopleID: 2, CountryCode: "IN"}})

	rep := jpdata.Report(&res.Resolution)
	test.MustBe(t, rep.Language.Resolved, 0)
	test.MustBe(t, rep.Language.Unresolved, 1)
	test.MustBe(t, rep.Language.Absent, 1)
	test.MustBe(t, rep.Country.String(), "2/2 (100.0%)")
}

func TestJoinFullEmbed(t *testing.T) {
	cols := mustLoad(scenario())
	res := mustJoin(t, cols, jpdata.EmbedFull)

	test.MustBe(t, res.Records[0].Country, cols.Countries[0].Fields, "country_data")
	test.MustBe(t, res.Records[1].Country, cols.Countries[1].Fields, "country_data")
	test.MustBe(t, res.Records[0].Language, cols.Languages[0].Fields, "language_data")
	if _, ok := res.Records[0].Country["ISO3"]; !ok {
		t.Fatal("full embed dropped a source field")
	}
}

func TestJoinReducedEmbed(t *testing.T) {
	res := mustJoin(t, mustLoad(scenario()), jpdata.EmbedReduced)
	c := res.Records[1].Country
	test.MustBe(t, len(c), 8, "country keys")
	test.MustBe(t, c["name"], "Nepal")
	test.MustBe(t, c["unreached_peoples"], float64(1900))
	l := res.Records[1].Language
	test.MustBe(t, len(l), 15, "language keys")
	test.MustBe(t, l["hub_country"], "India")
	if v, ok := l["nt_year"]; !ok || v != nil {
		t.Fatalf("expected null nt_year, got %v", v)
	}
}

func TestJoinLeavesGroupFieldsAlone(t *testing.T) {
	cols := mustLoad(scenario())
	before := make([]jpdata.Fields, len(cols.PeopleGroups))
	for i, p := range cols.PeopleGroups {
		before[i] = p.Fields.Copy()
	}
	res := mustJoin(t, cols, jpdata.EmbedReduced)
	for i, e := range res.Records {
		test.MustBe(t, e.Group.Fields, before[i], fmt.Sprintf("record %d", i))
		m := e.Map()
		for k, v := range before[i] {
			test.MustBe(t, m[k], v, k)
		}
		test.MustBe(t, len(m), len(before[i])+2)
	}
}

func manyGroups(n int) jpdata.Sources {
	groups := make([]interface{}, n)
	codes := []string{"IN", "NP", "ZZ", "BD"}
	langs := []string{"hin", "nep", "", "ben"}
	for i := range groups {
		lr := "N"
		if i%3 == 0 {
			lr = "Y"
		}
		groups[i] = group(i+1, codes[i%len(codes)], langs[i%len(langs)], lr)
	}
	return sources(groups,
		[]interface{}{country("IN", "India"), country("NP", "Nepal"), country("BD", "Bangladesh")},
		[]interface{}{language("hin", "Hindi"), language("nep", "Nepali")})
}

func TestJoinPreservesOrder(t *testing.T) {
	cols := mustLoad(manyGroups(250))
	idx, err := jpdata.BuildIndexes(cols.Countries, cols.Languages)
	test.ErrNil(t, err, "building indexes")
	j := jpdata.NewJoiner(idx, jpdata.EmbedReduced, jpdata.OptJoinWorkers(4))

	var got []jpdata.RecordKey
	var chunks int
	_, err = j.JoinChunks(context.Background(), cols.PeopleGroups, 7, func(chunk []*jpdata.Enriched) error {
		chunks++
		if len(chunk) > 7 {
			t.Fatalf("chunk of %d records", len(chunk))
		}
		for _, e := range chunk {
			got = append(got, e.Key())
		}
		return nil
	})
	test.ErrNil(t, err, "joining")
	test.MustBe(t, chunks, 36)
	test.MustBe(t, len(got), len(cols.PeopleGroups))
	for i, p := range cols.PeopleGroups {
		if got[i] != p.Key() {
			t.Fatalf("record %d: got %v, want %v", i, got[i], p.Key())
		}
	}
}

func TestJoinDeterministic(t *testing.T) {
	render := func(workers int) []byte {
		res := mustJoin(t, mustLoad(manyGroups(100)), jpdata.EmbedReduced, jpdata.OptJoinWorkers(workers))
		buf := &bytes.Buffer{}
		for _, e := range res.Records {
			b, err := json.Marshal(e.Map())
			test.ErrNil(t, err, "marshaling")
			buf.Write(b)
			buf.WriteByte('\n')
		}
		return buf.Bytes()
	}
	one, eight := render(1), render(8)
	if !bytes.Equal(one, eight) {
		t.Fatal("output differs between worker counts")
	}
	if !bytes.Equal(one, render(1)) {
		t.Fatal("output differs between runs")
	}
}

func TestJoinChunksCancelled(t *testing.T) {
	cols := mustLoad(manyGroups(20))
	idx, err := jpdata.BuildIndexes(cols.Countries, cols.Languages)
	test.ErrNil(t, err, "building indexes")
	ctx, cancel := context.WithCancel(context.Background())
	var handled int
	_, err = jpdata.NewJoiner(idx, jpdata.EmbedReduced).JoinChunks(ctx, cols.PeopleGroups, 5, func(chunk []*jpdata.Enriched) error {
		handled += len(chunk)
		cancel()
		return nil
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	test.MustBe(t, handled, 5)
}

func TestParseEmbedMode(t *testing.T) {
	for _, tst := range []struct {
		in   string
		want jpdata.EmbedMode
		err  bool
	}{
		{in: "", want: jpdata.EmbedReduced},
		{in: "reduced", want: jpdata.EmbedReduced},
		{in: "full", want: jpdata.EmbedFull},
		{in: "all", err: true},
	} {
		got, err := jpdata.ParseEmbedMode(tst.in)
		if (err != nil) != tst.err {
			t.Errorf("%q: unexpected error state %v", tst.in, err)
		}
		test.MustBe(t, got, tst.want, tst.in)
	}
}
