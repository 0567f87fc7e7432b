// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry holds every metric created through this package.
var DefaultRegistry = prometheus.NewRegistry()

var (
	mu         sync.Mutex
	counters   = map[string]prometheus.Counter{}
	histograms = map[string]prometheus.Histogram{}
)

// GetOrCreateCounter returns registered counter with the given name
// or creates new counter if the registry doesn't contain counter with
// the given name.
//
// The returned counter is safe to use from concurrent goroutines.
func GetOrCreateCounter(name string, help ...string) prometheus.Counter {
	mu.Lock()
	defer mu.Unlock()
	if c, ok := counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpOf(name, help)})
	if err := DefaultRegistry.Register(c); err != nil {
		panic(fmt.Errorf("could not create new counter: %w", err))
	}
	counters[name] = c
	return c
}

// GetOrCreateHistogram returns registered histogram (seconds buckets) with the given name
// or creates a new one.
func GetOrCreateHistogram(name string, help ...string) prometheus.Histogram {
	mu.Lock()
	defer mu.Unlock()
	if h, ok := histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    helpOf(name, help),
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	if err := DefaultRegistry.Register(h); err != nil {
		panic(fmt.Errorf("could not create new histogram: %w", err))
	}
	histograms[name] = h
	return h
}

func helpOf(name string, help []string) string {
	if len(help) > 0 {
		return help[0]
	}
	return name
}

// Handler serves DefaultRegistry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}

type HistTimer struct {
	prometheus.Histogram

	start time.Time
}

func NewHistTimer(h prometheus.Histogram) *HistTimer {
	return &HistTimer{Histogram: h, start: time.Now()}
}

func (h *HistTimer) PutSince() {
	h.Histogram.Observe(time.Since(h.start).Seconds())
}
