// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lectern",
		Subsystem: "rag",
		Name:      "query_duration_seconds",
		Help:      "End-to-end duration of one question, including tool rounds.",
		// Questions span two model calls; buckets reach tens of seconds.
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lectern",
		Subsystem: "rag",
		Name:      "queries_total",
		Help:      "Answered questions by outcome.",
	}, []string{"outcome"})
	querySources = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lectern",
		Subsystem: "rag",
		Name:      "query_sources",
		Help:      "Attribution sources returned per question.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})
	coursesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lectern",
		Subsystem: "rag",
		Name:      "courses_ingested_total",
		Help:      "Courses added to the vector store.",
	})
	chunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lectern",
		Subsystem: "rag",
		Name:      "chunks_ingested_total",
		Help:      "Content chunks added to the vector store.",
	})
)

// observeQuery records one question's metrics.
func observeQuery(duration time.Duration, ok bool, sources int) {
	queryDuration.Observe(duration.Seconds())
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	queriesTotal.WithLabelValues(outcome).Inc()
	if ok {
		querySources.Observe(float64(sources))
	}
}
