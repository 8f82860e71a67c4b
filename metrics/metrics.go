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

// Package metrics provides a jpdata.Statter which records into a Prometheus
// registry. Runs are batch jobs, so instead of serving the registry it is
// written out once as a node exporter textfile when the run ends.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "jpdata"

// Collector implements jpdata.Statter. Stat names may contain dots, which
// become underscores. Tags of the form "key:value" become labels; a tag
// without a colon becomes a label named after itself with value "true".
type Collector struct {
	lock     sync.Mutex
	registry *prometheus.Registry
	metrics  map[string]prometheus.Collector
	sets     map[string]map[string]struct{}
	errs     []error
}

// NewCollector returns a Collector with an empty registry.
func NewCollector() *Collector {
	return &Collector{
		registry: prometheus.NewRegistry(),
		metrics:  make(map[string]prometheus.Collector),
		sets:     make(map[string]map[string]struct{}),
	}
}

// Registry returns the registry stats are recorded in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func metricName(name, suffix string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
	return Namespace + "_" + name + suffix
}

func labels(tags []string) prometheus.Labels {
	if len(tags) == 0 {
		return nil
	}
	ls := make(prometheus.Labels, len(tags))
	for _, t := range tags {
		if i := strings.Index(t, ":"); i > 0 {
			ls[metricName(t[:i], "")[len(Namespace)+1:]] = t[i+1:]
		} else {
			ls[metricName(t, "")[len(Namespace)+1:]] = "true"
		}
	}
	return ls
}

func key(name string, ls prometheus.Labels) string {
	pairs := make([]string, 0, len(ls))
	for k, v := range ls {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}

// get returns the metric registered under name and tags, creating it with
// mk on first use. It must be called with the lock held. A metric which
// cannot be registered is remembered as an error and nil is returned.
func (c *Collector) get(name string, tags []string, mk func(prometheus.Opts) prometheus.Collector) prometheus.Collector {
	ls := labels(tags)
	k := key(name, ls)
	if m, ok := c.metrics[k]; ok {
		return m
	}
	m := mk(prometheus.Opts{Name: name, Help: "jpdata stat " + name, ConstLabels: ls})
	if err := c.registry.Register(m); err != nil {
		c.errs = append(c.errs, errors.Wrapf(err, "registering %s", k))
		return nil
	}
	c.metrics[k] = m
	return m
}

// Count adds value to the named counter.
func (c *Collector) Count(name string, value int64, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	m := c.get(metricName(name, "_total"), tags, func(o prometheus.Opts) prometheus.Collector {
		return prometheus.NewCounter(prometheus.CounterOpts(o))
	})
	if ctr, ok := m.(prometheus.Counter); ok && value >= 0 {
		ctr.Add(float64(value))
	}
}

// Gauge sets the named gauge.
func (c *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.setGauge(metricName(name, ""), value, tags)
}

func (c *Collector) setGauge(name string, value float64, tags []string) {
	m := c.get(name, tags, func(o prometheus.Opts) prometheus.Collector {
		return prometheus.NewGauge(prometheus.GaugeOpts(o))
	})
	if g, ok := m.(prometheus.Gauge); ok {
		g.Set(value)
	}
}

// Histogram observes value in the named histogram.
func (c *Collector) Histogram(name string, value float64, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	m := c.get(metricName(name, ""), tags, func(o prometheus.Opts) prometheus.Collector {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   o.Namespace,
			Name:        o.Name,
			Help:        o.Help,
			ConstLabels: o.ConstLabels,
			Buckets:     prometheus.DefBuckets,
		})
	})
	if h, ok := m.(prometheus.Histogram); ok {
		h.Observe(value)
	}
}

// Set counts the distinct values seen for the named stat.
func (c *Collector) Set(name string, value string, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	n := metricName(name, "_distinct")
	k := key(n, labels(tags))
	seen, ok := c.sets[k]
	if !ok {
		seen = make(map[string]struct{})
		c.sets[k] = seen
	}
	seen[value] = struct{}{}
	c.setGauge(n, float64(len(seen)), tags)
}

// Timing records the duration of the last occurrence of the named stat in
// seconds.
func (c *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.setGauge(metricName(name, "_seconds"), value.Seconds(), tags)
}

// Err returns the problems encountered while registering metrics, if any.
func (c *Collector) Err() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(c.errs))
	for i, err := range c.errs {
		msgs[i] = err.Error()
	}
	return errors.New(strings.Join(msgs, "; "))
}

// WriteTextfile writes every metric to path in the text exposition format,
// atomically, for the node exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	c.Gauge("last_run_timestamp", float64(time.Now().Unix()), 1)
	return errors.Wrapf(prometheus.WriteToTextfile(path, c.registry), "writing metrics to %s", path)
}
