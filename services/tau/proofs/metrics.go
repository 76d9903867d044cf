// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proofs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tau_proof_cache_hits_total",
		Help: "Lookups answered from a stored certificate.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tau_proof_cache_misses_total",
		Help: "Lookups with no certificate, including pruned stale entries.",
	})
	certStores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tau_proof_certificates_stored_total",
		Help: "Certificates written, by verification outcome.",
	}, []string{"verified"})
)
