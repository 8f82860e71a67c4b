// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package pilosa indexes enriched people groups in Pilosa so they can be
// counted and intersected by country, language, religion, and location.
package pilosa

import (
	"io"
	"sync"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	gopilosa "github.com/pilosa/go-pilosa"
	"github.com/pkg/errors"
)

// Indexer receives the bits and values of every record.
type Indexer interface {
	AddColumn(field string, col uint64, row string)
	AddValue(field string, col uint64, val int64)
	Close() error
}

// Index is an Indexer which streams into a Pilosa index. Set fields use
// string row keys; each field gets its own importer goroutine.
type Index struct {
	client    *gopilosa.Client
	index     *gopilosa.Index
	batchSize int
	log       jpdata.Logger

	lock        sync.RWMutex
	importWG    sync.WaitGroup
	recordChans map[string]chanRecordIterator

	errMu sync.Mutex
	err   error
}

// Schema returns the index layout used for people groups.
func Schema(indexName string) *gopilosa.Schema {
	schema := gopilosa.NewSchema()
	index := schema.Index(indexName)
	for _, name := range []string{FieldCountry, FieldLanguage, FieldReligion, FieldLeastReached, FieldFrontier, FieldGeohash, FieldUnresolved} {
		index.Field(name, gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, 100000), gopilosa.OptFieldKeys(true))
	}
	index.Field(FieldPopulation, gopilosa.OptFieldTypeInt(0, 1<<40))
	index.Field(FieldJPScale, gopilosa.OptFieldTypeInt(0, 10))
	return schema
}

// Setup connects to Pilosa, creates the index and its fields, and starts an
// importer for each field.
func Setup(hosts []string, indexName string, batchSize int, log jpdata.Logger) (*Index, error) {
	if log == nil {
		log = jpdata.NopLogger{}
	}
	client, err := gopilosa.NewClient(hosts,
		gopilosa.OptClientSocketTimeout(time.Minute*60),
		gopilosa.OptClientConnectTimeout(time.Second*60))
	if err != nil {
		return nil, errors.Wrap(err, "creating pilosa cluster client")
	}
	schema := Schema(indexName)
	if err := client.SyncSchema(schema); err != nil {
		return nil, errors.Wrap(err, "synchronizing schema")
	}
	i := &Index{
		client:      client,
		index:       schema.Index(indexName),
		batchSize:   batchSize,
		log:         log,
		recordChans: make(map[string]chanRecordIterator),
	}
	for _, field := range i.index.Fields() {
		if err := i.setupField(field); err != nil {
			i.Close()
			return nil, errors.Wrapf(err, "setting up field '%s'", field.Name())
		}
	}
	return i, nil
}

// AddColumn implements Indexer. Unknown fields are created as keyed set
// fields.
func (i *Index) AddColumn(fieldName string, col uint64, row string) {
	c, err := i.recordChan(fieldName, func() *gopilosa.Field {
		return i.index.Field(fieldName, gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, 100000), gopilosa.OptFieldKeys(true))
	})
	if err != nil {
		i.setErr(err)
		return
	}
	c <- gopilosa.Column{ColumnID: col, RowKey: row}
}

// AddValue implements Indexer. Unknown fields are created as int fields.
func (i *Index) AddValue(fieldName string, col uint64, val int64) {
	c, err := i.recordChan(fieldName, func() *gopilosa.Field {
		return i.index.Field(fieldName, gopilosa.OptFieldTypeInt(0, 1<<40))
	})
	if err != nil {
		i.setErr(err)
		return
	}
	c <- gopilosa.FieldValue{ColumnID: col, Value: val}
}

func (i *Index) recordChan(fieldName string, mk func() *gopilosa.Field) (chanRecordIterator, error) {
	i.lock.RLock()
	c, ok := i.recordChans[fieldName]
	i.lock.RUnlock()
	if ok {
		return c, nil
	}
	i.lock.Lock()
	defer i.lock.Unlock()
	if err := i.setupField(mk()); err != nil {
		return nil, errors.Wrapf(err, "setting up field '%s'", fieldName)
	}
	return i.recordChans[fieldName], nil
}

// setupField ensures the existence of a field in Pilosa and starts its
// importer. Callers must hold i.lock or have exclusive access to i.
func (i *Index) setupField(field *gopilosa.Field) error {
	fieldName := field.Name()
	if _, ok := i.recordChans[fieldName]; ok {
		return nil
	}
	if err := i.client.EnsureField(field); err != nil {
		return errors.Wrapf(err, "creating field '%v'", fieldName)
	}
	c := newChanRecordIterator()
	i.recordChans[fieldName] = c
	i.importWG.Add(1)
	go func() {
		defer i.importWG.Done()
		err := i.client.ImportField(field, c, gopilosa.OptImportBatchSize(i.batchSize))
		if err != nil {
			i.setErr(errors.Wrapf(err, "importing field %s", fieldName))
		}
	}()
	return nil
}

func (i *Index) setErr(err error) {
	i.errMu.Lock()
	defer i.errMu.Unlock()
	i.log.Printf("pilosa: %v", err)
	if i.err == nil {
		i.err = err
	}
}

// Close waits for every import to finish and returns the first error seen
// while indexing.
func (i *Index) Close() error {
	i.lock.Lock()
	for _, c := range i.recordChans {
		close(c)
	}
	i.recordChans = make(map[string]chanRecordIterator)
	i.lock.Unlock()
	i.importWG.Wait()
	i.errMu.Lock()
	defer i.errMu.Unlock()
	return i.err
}

type chanRecordIterator chan gopilosa.Record

func newChanRecordIterator() chanRecordIterator {
	return make(chan gopilosa.Record, 200000)
}

func (c chanRecordIterator) NextRecord() (gopilosa.Record, error) {
	b, ok := <-c
	if !ok {
		return b, io.EOF
	}
	return b, nil
}
