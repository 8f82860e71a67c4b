package leveldb_test

import (
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/leveldb"
	"github.com/lukeslp/joshua-project-data/test"
)

func key(id int64, country string) jpdata.RecordKey {
	return jpdata.RecordKey{PeopleID: id, CountryCode: country}
}

func TestColumnsSurviveReopen(t *testing.T) {
	dir := filepath.Join(test.MustTempDir(t), "columns")
	cols, err := leveldb.Open(dir)
	test.ErrNil(t, err, "Open")

	ids := make([]uint64, 0, 3)
	for _, k := range []jpdata.RecordKey{key(10208, "IN"), key(10208, "NP"), key(10208, "IN")} {
		id, err := cols.ColumnID(k)
		test.ErrNil(t, err, "ColumnID "+k.String())
		ids = append(ids, id)
	}
	test.MustBe(t, []uint64{0, 1, 0}, ids)
	test.MustBe(t, uint64(2), cols.Len())
	test.ErrNil(t, cols.Close(), "Close")

	cols, err = leveldb.Open(dir)
	test.ErrNil(t, err, "reopening")
	defer cols.Close()
	test.MustBe(t, uint64(2), cols.Len(), "after reopen")

	k, err := cols.Key(1)
	test.ErrNil(t, err, "Key(1)")
	test.MustBe(t, key(10208, "NP"), k)

	id, err := cols.ColumnID(key(10208, "IN"))
	test.ErrNil(t, err, "known key after reopen")
	test.MustBe(t, uint64(0), id)
	id, err = cols.ColumnID(key(10210, "BD"))
	test.ErrNil(t, err, "new key after reopen")
	test.MustBe(t, uint64(2), id, "allocation continues after reopen")

	if _, err := cols.Key(9); err == nil {
		t.Fatal("expected an error for an unknown column")
	}
}

func TestColumnsConcurrent(t *testing.T) {
	cols, err := leveldb.Open(filepath.Join(test.MustTempDir(t), "columns"))
	test.ErrNil(t, err, "Open")
	defer cols.Close()

	wg := &sync.WaitGroup{}
	rets := make([][]uint64, 8)
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		rets[i] = make([]uint64, 500)
		wg.Add(1)
		go func(ret []uint64) {
			defer wg.Done()
			for j := range ret {
				id, err := cols.ColumnID(key(int64(j), "IN"))
				if err != nil {
					errs <- err
					return
				}
				ret[j] = id
			}
		}(rets[i])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	for i, ret := range rets {
		if i != 0 && !reflect.DeepEqual(ret, rets[i-1]) {
			t.Fatalf("goroutines saw different columns: %v, %v", ret, rets[i-1])
		}
		sorted := append([]uint64(nil), ret...)
		sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
		for j := range sorted {
			if sorted[j] != uint64(j) {
				t.Fatalf("columns are not dense, pos: %v, val: %v", j, sorted[j])
			}
		}
	}
}

func BenchmarkColumnID(b *testing.B) {
	cols, err := leveldb.Open(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer cols.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cols.ColumnID(key(int64(i), "IN"))
	}
}
