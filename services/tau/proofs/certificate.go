// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proofs

import "time"

// Specs is the full specification recorded alongside a certificate.
type Specs struct {
	Requires   string   `json:"requires"`
	Ensures    string   `json:"ensures"`
	Invariants []string `json:"invariants"`
	Variant    string   `json:"variant"`
}

// Certificate is the durable record of one verification attempt. It is
// written once per Store call as artifacts/<hash>.json and never mutated;
// access metadata lives in the index, not here.
type Certificate struct {
	Hash         string    `json:"hash"`
	SourceHash   string    `json:"source_hash"`
	BodyHash     string    `json:"body_hash"`
	FunctionName string    `json:"function_name"`
	Verified     bool      `json:"verified"`
	Timestamp    time.Time `json:"timestamp"`
	Reason       string    `json:"reason,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	SourceCode   string    `json:"source_code"`
	Specs        Specs     `json:"specs"`

	// Paths relative to the cache root.
	WhymlFile string `json:"whyml_file,omitempty"`
	LeanFile  string `json:"lean_file,omitempty"`
	LogFile   string `json:"log_file,omitempty"`
}

// indexEntry is the per-certificate index record. The certificate itself
// stays on disk; the entry carries just enough to list, prune, and track
// access without reading artifact files.
type indexEntry struct {
	FunctionName string    `json:"function_name"`
	Verified     bool      `json:"verified"`
	BodyHash     string    `json:"body_hash"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
	ArtifactFile string    `json:"artifact_file"`
}

// Summary is one row of a certificate listing.
type Summary struct {
	Hash         string    `json:"hash"`
	FunctionName string    `json:"function_name"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
}

// Stats are the persisted cache counters.
type Stats struct {
	TotalEntries   int       `json:"total_entries"`
	CacheHits      int64     `json:"cache_hits"`
	CacheMisses    int64     `json:"cache_misses"`
	CacheSizeBytes int64     `json:"cache_size_bytes"`
	LastCleanup    time.Time `json:"last_cleanup,omitzero"`
}
