package json_test

import (
	"io"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/lukeslp/joshua-project-data/test"
	"github.com/pkg/errors"
)

func drain(t *testing.T, src jpdata.Source) ([]interface{}, error) {
	t.Helper()
	var recs []interface{}
	for {
		rec, err := src.Record()
		if err == io.EOF {
			return recs, nil
		} else if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

func TestSourceArray(t *testing.T) {
	src := json.NewSource(strings.NewReader(` [
		{"PeopleID3": 10208, "ROG3": "IN", "PercentEvangelical": 0.10},
		{"PeopleID3": 10209, "ROG3": "NP", "LeastReached": "Y"}
	]`))
	recs, err := drain(t, src)
	test.ErrNil(t, err, "draining")
	test.MustBe(t, len(recs), 2)

	first := recs[0].(map[string]interface{})
	test.MustBe(t, first["ROG3"], "IN")
	test.MustBe(t, first["PeopleID3"], gojson.Number("10208"))
	test.MustBe(t, first["PercentEvangelical"], gojson.Number("0.10"), "literal kept")

	if _, err := src.Record(); err != io.EOF {
		t.Fatalf("expected EOF after the end, got %v", err)
	}
}

func TestSourceEmptyArray(t *testing.T) {
	recs, err := drain(t, json.NewSource(strings.NewReader(`[]`)))
	test.ErrNil(t, err, "draining")
	test.MustBe(t, len(recs), 0)
}

func TestSourceNDJSON(t *testing.T) {
	in := "{\"id\": \"a\"}\n{\"id\": \"b\"}\n"
	recs, err := drain(t, json.NewSource(strings.NewReader(in), json.OptSrcNDJSON(true)))
	test.ErrNil(t, err, "draining")
	test.MustBe(t, len(recs), 2)
	test.MustBe(t, recs[1].(map[string]interface{})["id"], "b")

	_, err = drain(t, json.NewSource(strings.NewReader(in)))
	if errors.Cause(err) != jpdata.ErrNotSequence {
		t.Fatalf("expected ErrNotSequence without the option, got %v", err)
	}
	recs, err = drain(t, json.NewSource(strings.NewReader(`[{"id": "a"}]`), json.OptSrcNDJSON(true)))
	test.ErrNil(t, err, "array with the option")
	test.MustBe(t, len(recs), 1)
}

func TestSourceSingleObject(t *testing.T) {
	for _, in := range []string{`{"ROG3": "IN", "Ctry": "India"}`, `{"id": "x", "Value": 3}`, `{"error": "invalid api key"}`} {
		recs, err := drain(t, json.NewSource(strings.NewReader(in)))
		if errors.Cause(err) != jpdata.ErrNotSequence {
			t.Errorf("%s: expected ErrNotSequence, got %v", in, err)
		}
		test.MustBe(t, len(recs), 0, in)
	}
}

func TestSourceNotSequence(t *testing.T) {
	for _, in := range []string{``, `  `, `"people"`, `42`} {
		_, err := drain(t, json.NewSource(strings.NewReader(in)))
		if errors.Cause(err) != jpdata.ErrNotSequence {
			t.Errorf("%q: expected ErrNotSequence, got %v", in, err)
		}
	}
}

func TestSourceNonObjectElement(t *testing.T) {
	recs, err := drain(t, json.NewSource(strings.NewReader(`[{"a": 1}, 7, "x"]`)))
	test.ErrNil(t, err, "draining")
	test.MustBe(t, len(recs), 3)
	test.MustBe(t, recs[1], gojson.Number("7"))
}

func TestSourceTruncated(t *testing.T) {
	recs, err := drain(t, json.NewSource(strings.NewReader(`[{"a": 1}, {"b": `)))
	if err == nil {
		t.Fatal("expected an error")
	}
	test.MustBe(t, len(recs), 1)
}

func TestLoadMalformedFromJSON(t *testing.T) {
	srcs := jpdata.Sources{
		PeopleGroups: json.NewSource(strings.NewReader(`[{"PeopleID3": 1, "ROG3": "IN"}]`)),
		Countries:    json.NewSource(strings.NewReader(`{"ROG3": "IN"`)),
		Languages:    json.NewSource(strings.NewReader(`[]`)),
	}
	_, err := jpdata.Load(srcs)
	if !jpdata.IsMalformedInput(err) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	merr := errors.Cause(err).(*jpdata.MalformedInputError)
	test.MustBe(t, merr.Collection, jpdata.CollectionCountries)

	srcs = jpdata.Sources{
		PeopleGroups: json.NewSource(strings.NewReader(`[]`)),
		Countries:    json.NewSource(strings.NewReader(`{"ROG3": "IN", "Ctry": "India"}`)),
		Languages:    json.NewSource(strings.NewReader(`[]`)),
	}
	_, err = jpdata.Load(srcs)
	if !jpdata.IsMalformedInput(err) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	merr = errors.Cause(err).(*jpdata.MalformedInputError)
	test.MustBe(t, merr.Collection, jpdata.CollectionCountries)
	test.MustBe(t, merr.Index, -1, "the whole collection is rejected")

	srcs = jpdata.Sources{
		PeopleGroups: json.NewSource(strings.NewReader("{\"not\": \"a list\"}\n"), json.OptSrcNDJSON(true)),
		Countries:    json.NewSource(strings.NewReader(`[]`)),
		Languages:    json.NewSource(strings.NewReader(`[]`)),
	}
	_, err = jpdata.Load(srcs)
	if !jpdata.IsMalformedInput(err) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	merr = errors.Cause(err).(*jpdata.MalformedInputError)
	test.MustBe(t, merr.Collection, jpdata.CollectionPeopleGroups)
	test.MustBe(t, merr.Index, 0)
	test.MustBe(t, merr.Reason, "missing identity field PeopleID3, ROG3")
}

func TestLoadTotalsRejectsSingleObject(t *testing.T) {
	_, err := jpdata.LoadTotals(json.NewSource(strings.NewReader(`{"id": "x", "Value": 3}`)))
	if !jpdata.IsMalformedInput(err) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}
