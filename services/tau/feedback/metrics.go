// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tau_feedback_outcomes_total",
		Help: "Feedback-loop terminal outcomes.",
	}, []string{"outcome"})

	loopRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tau_feedback_rounds",
		Help:    "Prover rounds taken per verification attempt.",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	})
)
