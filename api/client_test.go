package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukeslp/joshua-project-data/api"
	"github.com/lukeslp/joshua-project-data/test"
	"github.com/pkg/errors"
	gobreaker "github.com/sony/gobreaker/v2"
)

const testKey = "test-key-123"

func newClient(t *testing.T, url string, retries int) *api.Client {
	t.Helper()
	c, err := api.NewClient(testKey,
		api.OptClientBaseURL(url),
		api.OptClientInterval(time.Millisecond),
		api.OptClientRetries(retries, time.Millisecond))
	test.ErrNil(t, err, "NewClient")
	return c
}

func countries() api.Dataset {
	ds, _ := api.DatasetByName("countries")
	return ds
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/countries.json" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("api_key") != testKey || q.Get("limit") != "20000" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`[{"ROG3":"IN","Ctry":"India"},{"ROG3":"NP","Ctry":"Nepal"}]`))
	}))
	defer srv.Close()

	resp, err := newClient(t, srv.URL, 0).Fetch(context.Background(), countries())
	test.ErrNil(t, err, "Fetch")
	test.MustBe(t, 2, len(resp.Records))
	rec := resp.Records[1].(map[string]interface{})
	test.MustBe(t, "Nepal", rec["Ctry"])
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	resp, err := newClient(t, srv.URL, 3).Fetch(context.Background(), countries())
	test.ErrNil(t, err, "Fetch")
	test.MustBe(t, 0, len(resp.Records))
	test.MustBe(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchClientErrorIsFinal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 3).Fetch(context.Background(), countries())
	serr, ok := errors.Cause(err).(*api.StatusError)
	if !ok {
		t.Fatalf("expected a StatusError, got %v", err)
	}
	test.MustBe(t, http.StatusUnauthorized, serr.Code)
	test.MustBe(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchOpensBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 10).Fetch(context.Background(), countries())
	test.MustBe(t, gobreaker.ErrOpenState, errors.Cause(err))
	test.MustBe(t, int32(5), atomic.LoadInt32(&hits))
}

func TestFetchErrorsHideKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url, 0).Fetch(context.Background(), countries())
	if err == nil {
		t.Fatal("expected an error from a closed server")
	}
	if strings.Contains(err.Error(), testKey) {
		t.Fatalf("error leaks the API key: %v", err)
	}
}

func TestFetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(t, srv.URL, 3).Fetch(ctx, countries())
	if err == nil {
		t.Fatal("expected an error from a canceled context")
	}
}

func TestNewClientNeedsKey(t *testing.T) {
	_, err := api.NewClient("")
	test.MustBe(t, api.ErrNoAPIKey, err)
}

func TestURLRedactsKey(t *testing.T) {
	c, err := api.NewClient(testKey)
	test.ErrNil(t, err, "NewClient")
	test.MustBe(t, "https://api.joshuaproject.net/v1/countries.json?api_key=REDACTED&limit=20000", c.URL(countries()))
}

func TestDecodeRejectsNonArray(t *testing.T) {
	_, err := api.Decode(countries(), []byte(`"nope"`), nil)
	if err == nil {
		t.Fatal("expected an error decoding a string")
	}
}

func TestFetchRejectsErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "message": "API key is not valid"}`))
	}))
	defer srv.Close()

	resp, err := newClient(t, srv.URL, 0).Fetch(context.Background(), countries())
	if err == nil {
		t.Fatalf("expected an error for a lone object, got %d records", len(resp.Records))
	}
	if !strings.Contains(err.Error(), "not a list") {
		t.Fatalf("unexpected error: %v", err)
	}
}
