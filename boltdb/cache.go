// Package boltdb keeps snapshots of raw API responses in a boltdb file, so a
// run can be repeated against exactly the data an earlier fetch saw.
package boltdb

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var snapshotBucket = []byte("snapshots")

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one stored response body.
type Snapshot struct {
	Dataset   string
	FetchedAt time.Time
	Body      []byte
}

// Cache stores snapshots keyed by dataset and fetch time.
type Cache struct {
	Db *bolt.DB
}

// Open opens or creates the cache file.
func Open(filename string) (*Cache, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return errors.Wrap(err, "creating snapshots bucket")
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &Cache{Db: db}, nil
}

// Close syncs and closes the underlying boltdb.
func (c *Cache) Close() error {
	err := c.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return c.Db.Close()
}

func timeKey(t time.Time) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return k
}

func keyTime(k []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(k))).UTC()
}

// Put stores body as the snapshot of dataset fetched at.
func (c *Cache) Put(dataset string, at time.Time, body []byte) error {
	return c.Db.Update(func(tx *bolt.Tx) error {
		db, err := tx.Bucket(snapshotBucket).CreateBucketIfNotExists([]byte(dataset))
		if err != nil {
			return errors.Wrapf(err, "adding bucket for %s", dataset)
		}
		return errors.Wrapf(db.Put(timeKey(at), body), "storing %s snapshot", dataset)
	})
}

// Get returns the snapshot of dataset fetched exactly at.
func (c *Cache) Get(dataset string, at time.Time) (Snapshot, error) {
	s := Snapshot{Dataset: dataset, FetchedAt: at.UTC()}
	err := c.Db.View(func(tx *bolt.Tx) error {
		db := tx.Bucket(snapshotBucket).Bucket([]byte(dataset))
		if db == nil {
			return ErrNotFound
		}
		v := db.Get(timeKey(at))
		if v == nil {
			return ErrNotFound
		}
		s.Body = append([]byte(nil), v...)
		return nil
	})
	return s, err
}

// Latest returns the most recent snapshot of dataset. If before is not zero,
// only snapshots taken at or before it are considered.
func (c *Cache) Latest(dataset string, before time.Time) (Snapshot, error) {
	s := Snapshot{Dataset: dataset}
	err := c.Db.View(func(tx *bolt.Tx) error {
		db := tx.Bucket(snapshotBucket).Bucket([]byte(dataset))
		if db == nil {
			return ErrNotFound
		}
		cur := db.Cursor()
		var k, v []byte
		if before.IsZero() {
			k, v = cur.Last()
		} else {
			bk := timeKey(before)
			k, v = cur.Seek(bk)
			if k == nil {
				k, v = cur.Last()
			} else if !bytes.Equal(k, bk) {
				k, v = cur.Prev()
			}
		}
		if k == nil {
			return ErrNotFound
		}
		s.FetchedAt = keyTime(k)
		s.Body = append([]byte(nil), v...)
		return nil
	})
	return s, err
}

// List returns the fetch times of every snapshot of dataset, oldest first.
func (c *Cache) List(dataset string) ([]time.Time, error) {
	var times []time.Time
	err := c.Db.View(func(tx *bolt.Tx) error {
		db := tx.Bucket(snapshotBucket).Bucket([]byte(dataset))
		if db == nil {
			return nil
		}
		return db.ForEach(func(k, _ []byte) error {
			times = append(times, keyTime(k))
			return nil
		})
	})
	return times, err
}

// Prune deletes all but the newest keep snapshots of dataset.
func (c *Cache) Prune(dataset string, keep int) (deleted int, err error) {
	err = c.Db.Update(func(tx *bolt.Tx) error {
		db := tx.Bucket(snapshotBucket).Bucket([]byte(dataset))
		if db == nil {
			return nil
		}
		var keys [][]byte
		err := db.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		for i := 0; i < len(keys)-keep; i++ {
			if err := db.Delete(keys[i]); err != nil {
				return errors.Wrap(err, "deleting snapshot")
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
