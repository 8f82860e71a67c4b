// Package leveldb keeps people group column ids on disk, so a people group
// keeps the same Pilosa column from one quarterly run to the next.
package leveldb

import (
	"encoding/binary"
	"sync"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ jpdata.ColumnMapper = &Columns{}

// Both directions of the mapping live in one database under these prefixes:
// "k:<PeopleID3>-<ROG3>" holds the column and "i:<column>" holds the key.
var (
	keyPrefix = []byte("k:")
	idPrefix  = []byte("i:")
)

// Columns is a jpdata.ColumnMapper backed by leveldb.
type Columns struct {
	db *leveldb.DB

	// mu serializes allocation; lookups of known keys don't take it.
	mu   sync.Mutex
	next uint64
}

// Open opens or creates the column store in dir. Allocation continues after
// the highest column already stored.
func Open(dir string) (*Columns, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", dir)
	}
	c := &Columns{db: db}
	iter := db.NewIterator(util.BytesPrefix(idPrefix), nil)
	if iter.Last() {
		c.next = binary.BigEndian.Uint64(iter.Key()[len(idPrefix):]) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "finding highest column")
	}
	return c, nil
}

// Close closes the database.
func (c *Columns) Close() error {
	return errors.Wrap(c.db.Close(), "closing column store")
}

// Len returns the number of columns allocated so far.
func (c *Columns) Len() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

func idKey(id uint64) []byte {
	b := make([]byte, len(idPrefix)+8)
	copy(b, idPrefix)
	binary.BigEndian.PutUint64(b[len(idPrefix):], id)
	return b
}

func recordKey(k jpdata.RecordKey) []byte {
	return append(append([]byte(nil), keyPrefix...), k.String()...)
}

func (c *Columns) lookup(rk []byte) (id uint64, ok bool, err error) {
	data, err := c.db.Get(rk, nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	} else if err != nil {
		return 0, false, errors.Wrapf(err, "reading %s", rk)
	}
	if len(data) != 8 {
		return 0, false, errors.Errorf("corrupt column for %s", rk)
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// ColumnID returns the column of k, allocating the next one if k is new. Both
// directions are written in a single batch.
func (c *Columns) ColumnID(k jpdata.RecordKey) (uint64, error) {
	rk := recordKey(k)
	if id, ok, err := c.lookup(rk); err != nil || ok {
		return id, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok, err := c.lookup(rk); err != nil || ok {
		return id, err
	}
	id := c.next
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, id)
	batch := new(leveldb.Batch)
	batch.Put(rk, val)
	batch.Put(idKey(id), []byte(k.String()))
	if err := c.db.Write(batch, nil); err != nil {
		return 0, errors.Wrapf(err, "storing column for %s", k)
	}
	c.next++
	return id, nil
}

// Key returns the people group stored in column id.
func (c *Columns) Key(id uint64) (jpdata.RecordKey, error) {
	var k jpdata.RecordKey
	data, err := c.db.Get(idKey(id), nil)
	if err != nil {
		return k, errors.Wrapf(err, "reading column %d", id)
	}
	err = k.UnmarshalText(data)
	return k, errors.Wrapf(err, "column %d", id)
}
