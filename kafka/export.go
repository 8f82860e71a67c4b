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

// Package kafka publishes enriched datasets to Kafka, one topic per dataset
// and one message per people group.
package kafka

import (
	"github.com/Shopify/sarama"
	json "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/pkg/errors"
)

// NewProducer connects a synchronous producer to hosts.
func NewProducer(hosts []string) (sarama.SyncProducer, error) {
	conf := sarama.NewConfig()
	conf.Version = sarama.V0_10_0_0
	conf.ClientID = "jpdata"
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Retry.Max = 5
	producer, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting new producer")
	}
	return producer, nil
}

// Exporter sends every dataset to the topic <prefix>.<dataset>. Messages are
// keyed by <PeopleID3>-<ROG3> and carry the record as json. Kafka has no
// transactions here, so Abort cannot recall messages already sent.
type Exporter struct {
	producer  sarama.SyncProducer
	prefix    string
	batchSize int
	log       jpdata.Logger
}

// ExpOption is a functional option for the kafka Exporter.
type ExpOption func(e *Exporter)

// OptExpTopicPrefix sets the topic prefix. The default is "joshua_project".
func OptExpTopicPrefix(prefix string) ExpOption {
	return func(e *Exporter) {
		e.prefix = prefix
	}
}

// OptExpBatchSize sets how many messages are sent at once.
func OptExpBatchSize(n int) ExpOption {
	return func(e *Exporter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// OptExpLogger sets the logger.
func OptExpLogger(log jpdata.Logger) ExpOption {
	return func(e *Exporter) {
		e.log = log
	}
}

// NewExporter returns an Exporter sending through producer. The Exporter
// closes the producer on Commit or Abort.
func NewExporter(producer sarama.SyncProducer, opts ...ExpOption) *Exporter {
	e := &Exporter{
		producer:  producer,
		prefix:    jpdata.DefaultPrefix,
		batchSize: 500,
		log:       jpdata.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Topic returns the topic a dataset is sent to.
func (e *Exporter) Topic(dataset string) string {
	return e.prefix + "." + dataset
}

// Writer implements jpdata.Exporter.
func (e *Exporter) Writer(dataset string) (jpdata.RecordWriter, error) {
	return &topicWriter{exp: e, topic: e.Topic(dataset)}, nil
}

// Commit implements jpdata.Exporter.
func (e *Exporter) Commit() error {
	return errors.Wrap(e.producer.Close(), "closing kafka producer")
}

// Abort implements jpdata.Exporter.
func (e *Exporter) Abort() error {
	e.log.Printf("kafka export aborted; messages already sent are kept")
	return errors.Wrap(e.producer.Close(), "closing kafka producer")
}

type topicWriter struct {
	exp   *Exporter
	topic string
	batch []*sarama.ProducerMessage
	sent  int
}

func (w *topicWriter) Write(e *jpdata.Enriched) error {
	b, err := json.MarshalWithOption(e.Map(), json.DisableHTMLEscape())
	if err != nil {
		return errors.Wrapf(err, "marshaling %s", e.Key())
	}
	w.batch = append(w.batch, &sarama.ProducerMessage{
		Topic: w.topic,
		Key:   sarama.StringEncoder(e.Key().String()),
		Value: sarama.ByteEncoder(b),
	})
	if len(w.batch) >= w.exp.batchSize {
		return w.flush()
	}
	return nil
}

func (w *topicWriter) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	if err := w.exp.producer.SendMessages(w.batch); err != nil {
		return errors.Wrapf(err, "sending %d messages to %s", len(w.batch), w.topic)
	}
	w.sent += len(w.batch)
	w.batch = w.batch[:0]
	return nil
}

func (w *topicWriter) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	w.exp.log.Debugf("sent %d messages to %s", w.sent, w.topic)
	return nil
}
