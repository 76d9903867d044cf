// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package proofs stores proof certificates under content-derived hashes so
// that verified functions are never re-proved. The index lives in a Badger
// keyspace under the cache root; certificates and prover artifacts are plain
// files next to it, one per hash, so a single store or invalidate never
// rewrites the whole index.
package proofs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("tau.proofs")

const (
	certPrefix = "cert:"
	bodyPrefix = "body:"
	statsKey   = "stats"

	artifactsDir = "artifacts"
	whymlDir     = "whyml"
	leanDir      = "lean"
	logsDir      = "logs"
)

// Config configures the certificate store.
type Config struct {
	// Dir is the cache root. Artifact files live under it even when the
	// index is in memory.
	Dir string

	// InMemory keeps the index off disk. Tests use this.
	InMemory bool

	Logger *slog.Logger
}

// DefaultConfig returns a store rooted at .tau_proofs.
func DefaultConfig() Config {
	return Config{Dir: ".tau_proofs"}
}

// Store is the proof-certificate cache. All operations are safe for
// concurrent use.
type Store struct {
	root   string
	db     *badger.DB
	logger *slog.Logger

	// mu serializes read-modify-write sequences that span the index and
	// the artifact files.
	mu sync.Mutex
}

// Artifacts are the files persisted with a certificate. Empty fields are
// skipped.
type Artifacts struct {
	Whyml     string
	Lean      string
	ProverLog string
}

// Outcome describes the verification result being recorded.
type Outcome struct {
	Verified bool
	Reason   string
	Duration time.Duration
}

// Open creates the cache directories and opens the index.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultConfig().Dir
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	for _, sub := range []string{artifactsDir, whymlDir, leanDir, logsDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("proofs: creating cache directory: %w", err)
		}
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(filepath.Join(cfg.Dir, "index")).WithSyncWrites(true)
	}
	opts = opts.WithLogger(badgerLogger{cfg.Logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("proofs: opening index: %w", err)
	}

	cfg.Logger.Info("proof cache open", "dir", cfg.Dir, "in_memory", cfg.InMemory)
	return &Store{root: cfg.Dir, db: db, logger: cfg.Logger}, nil
}

// Close releases the index.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the stored certificate for the function, or nil when none
// exists. A hit updates the entry's access metadata; an index entry whose
// certificate file has gone missing is pruned and counted as a miss.
func (s *Store) Lookup(ctx context.Context, info FunctionInfo) (*Certificate, error) {
	_, span := tracer.Start(ctx, "proofs.Lookup")
	defer span.End()

	hash := FullHash(info)
	span.SetAttributes(attribute.String("proof.hash", hash))

	s.mu.Lock()
	defer s.mu.Unlock()

	var cert *Certificate
	pruned := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var entry indexEntry
		err := getJSON(txn, certKey(hash), &entry)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return s.recordMiss(txn)
		}
		if err != nil {
			return err
		}

		loaded, err := s.readCertificate(entry.ArtifactFile)
		if err != nil {
			s.logger.Warn("pruning stale cache entry", "hash", hash, "error", err)
			if err := s.pruneLocked(txn, hash, entry); err != nil {
				return err
			}
			pruned = true
			return s.recordMiss(txn)
		}

		entry.LastAccessed = time.Now().UTC()
		entry.AccessCount++
		if err := setJSON(txn, certKey(hash), entry); err != nil {
			return err
		}
		cert = loaded
		cacheHits.Inc()
		return s.bumpStats(txn, func(st *Stats) { st.CacheHits++ })
	})
	if err != nil {
		return nil, fmt.Errorf("proofs: lookup: %w", err)
	}
	if pruned {
		s.removeArtifacts(hash)
		s.refreshSize()
	}
	if cert != nil {
		s.logger.Debug("cache hit", "function", info.Name, "hash", hash)
	}
	return cert, nil
}

// Store writes the artifact files and certificate for a verification
// attempt and indexes them. Storing the same function again overwrites the
// previous certificate under the same hash.
func (s *Store) Store(ctx context.Context, info FunctionInfo, out Outcome, art Artifacts) (*Certificate, error) {
	_, span := tracer.Start(ctx, "proofs.Store")
	defer span.End()

	cert := &Certificate{
		Hash:         FullHash(info),
		SourceHash:   SourceHash(info),
		BodyHash:     BodyHash(info),
		FunctionName: info.Name,
		Verified:     out.Verified,
		Timestamp:    time.Now().UTC(),
		Reason:       out.Reason,
		Duration:     out.Duration.Seconds(),
		SourceCode:   info.Source,
		Specs: Specs{
			Requires:   info.Requires,
			Ensures:    info.Ensures,
			Invariants: nonNil(info.Invariants),
			Variant:    info.Variant,
		},
	}
	span.SetAttributes(
		attribute.String("proof.hash", cert.Hash),
		attribute.Bool("proof.verified", cert.Verified),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeArtifacts(cert, art); err != nil {
		return nil, err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		isNew := true
		var prev indexEntry
		if err := getJSON(txn, certKey(cert.Hash), &prev); err == nil {
			isNew = false
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		entry := indexEntry{
			FunctionName: cert.FunctionName,
			Verified:     cert.Verified,
			BodyHash:     cert.BodyHash,
			CreatedAt:    cert.Timestamp,
			ArtifactFile: filepath.Join(artifactsDir, cert.Hash+".json"),
		}
		if err := setJSON(txn, certKey(cert.Hash), entry); err != nil {
			return err
		}

		if err := s.indexBody(txn, cert.BodyHash, cert.Hash); err != nil {
			return err
		}

		size := s.diskUsage()
		return s.bumpStats(txn, func(st *Stats) {
			if isNew {
				st.TotalEntries++
			}
			st.CacheSizeBytes = size
		})
	})
	if err != nil {
		return nil, fmt.Errorf("proofs: store: %w", err)
	}

	certStores.WithLabelValues(strconv.FormatBool(cert.Verified)).Inc()
	s.logger.Info("certificate stored",
		"function", cert.FunctionName, "hash", cert.Hash, "verified", cert.Verified)
	return cert, nil
}

// Invalidate removes one certificate by full hash. It reports whether an
// entry existed.
func (s *Store) Invalidate(ctx context.Context, hash string) (bool, error) {
	_, span := tracer.Start(ctx, "proofs.Invalidate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var entry indexEntry
		err := getJSON(txn, certKey(hash), &entry)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return s.pruneLocked(txn, hash, entry)
	})
	if err != nil {
		return false, fmt.Errorf("proofs: invalidate: %w", err)
	}
	if found {
		s.removeArtifacts(hash)
		s.refreshSize()
		s.logger.Info("certificate invalidated", "hash", hash)
	}
	return found, nil
}

// FindByBody returns every certificate whose body matches the function's,
// regardless of specification, newest first. Callers use this to surface
// prior proofs of the same code under different contracts.
func (s *Store) FindByBody(ctx context.Context, info FunctionInfo) ([]*Certificate, error) {
	_, span := tracer.Start(ctx, "proofs.FindByBody")
	defer span.End()

	bodyHash := BodyHash(info)

	var hashes []string
	err := s.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, bodyKey(bodyHash), &hashes)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("proofs: find by body: %w", err)
	}

	var certs []*Certificate
	for _, h := range hashes {
		cert, err := s.readCertificate(filepath.Join(artifactsDir, h+".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable certificate", "hash", h, "error", err)
			continue
		}
		certs = append(certs, cert)
	}
	sort.Slice(certs, func(i, j int) bool {
		return certs[i].Timestamp.After(certs[j].Timestamp)
	})
	return certs, nil
}

// List returns certificate summaries, newest first.
func (s *Store) List(ctx context.Context, verifiedOnly bool) ([]Summary, error) {
	_, span := tracer.Start(ctx, "proofs.List")
	defer span.End()

	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(certPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			hash := strings.TrimPrefix(string(item.Key()), certPrefix)
			var entry indexEntry
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				return err
			}
			if verifiedOnly && !entry.Verified {
				continue
			}
			out = append(out, Summary{
				Hash:         hash,
				FunctionName: entry.FunctionName,
				Verified:     entry.Verified,
				CreatedAt:    entry.CreatedAt,
				LastAccessed: entry.LastAccessed,
				AccessCount:  entry.AccessCount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("proofs: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Statistics returns the persisted counters.
func (s *Store) Statistics(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, statsKey, &st)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return Stats{}, fmt.Errorf("proofs: statistics: %w", err)
	}
	return st, nil
}

// Clear removes every certificate, artifact, and counter.
func (s *Store) Clear(ctx context.Context) error {
	_, span := tracer.Start(ctx, "proofs.Clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("proofs: clear: %w", err)
	}
	for _, sub := range []string{artifactsDir, whymlDir, leanDir, logsDir} {
		dir := filepath.Join(s.root, sub)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("proofs: clear: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("proofs: clear: %w", err)
		}
	}
	s.logger.Info("proof cache cleared")
	return nil
}

// Cleanup invalidates certificates older than maxAge and records the sweep.
// It returns the number removed.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	_, span := tracer.Start(ctx, "proofs.Cleanup")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	var stale []string
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(certPrefix)
		type victim struct {
			hash  string
			entry indexEntry
		}
		var victims []victim
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var entry indexEntry
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				it.Close()
				return err
			}
			if entry.CreatedAt.Before(cutoff) {
				victims = append(victims, victim{
					hash:  strings.TrimPrefix(string(item.Key()), certPrefix),
					entry: entry,
				})
			}
		}
		it.Close()

		for _, v := range victims {
			if err := s.pruneLocked(txn, v.hash, v.entry); err != nil {
				return err
			}
			stale = append(stale, v.hash)
		}
		return s.bumpStats(txn, func(st *Stats) { st.LastCleanup = time.Now().UTC() })
	})
	if err != nil {
		return 0, fmt.Errorf("proofs: cleanup: %w", err)
	}

	for _, h := range stale {
		s.removeArtifacts(h)
	}
	if len(stale) > 0 {
		s.refreshSize()
		s.logger.Info("proof cache cleanup", "removed", len(stale), "max_age", maxAge)
	}
	return len(stale), nil
}

// pruneLocked removes an entry from the cert and body indexes and decrements
// the entry count. Callers hold s.mu and remove artifact files themselves.
func (s *Store) pruneLocked(txn *badger.Txn, hash string, entry indexEntry) error {
	if err := txn.Delete(certKey(hash)); err != nil {
		return err
	}

	var hashes []string
	err := getJSON(txn, bodyKey(entry.BodyHash), &hashes)
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	kept := hashes[:0]
	for _, h := range hashes {
		if h != hash {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		if err := txn.Delete(bodyKey(entry.BodyHash)); err != nil {
			return err
		}
	} else if len(kept) != len(hashes) {
		if err := setJSON(txn, bodyKey(entry.BodyHash), kept); err != nil {
			return err
		}
	}

	return s.bumpStats(txn, func(st *Stats) { st.TotalEntries-- })
}

// refreshSize re-measures the artifact directories after files have been
// removed. Callers hold s.mu.
func (s *Store) refreshSize() {
	size := s.diskUsage()
	err := s.db.Update(func(txn *badger.Txn) error {
		return s.bumpStats(txn, func(st *Stats) { st.CacheSizeBytes = size })
	})
	if err != nil {
		s.logger.Warn("updating cache size", "error", err)
	}
}

func (s *Store) recordMiss(txn *badger.Txn) error {
	cacheMisses.Inc()
	return s.bumpStats(txn, func(st *Stats) { st.CacheMisses++ })
}

func (s *Store) indexBody(txn *badger.Txn, bodyHash, hash string) error {
	var hashes []string
	err := getJSON(txn, bodyKey(bodyHash), &hashes)
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	for _, h := range hashes {
		if h == hash {
			return nil
		}
	}
	return setJSON(txn, bodyKey(bodyHash), append(hashes, hash))
}

func (s *Store) bumpStats(txn *badger.Txn, apply func(*Stats)) error {
	var st Stats
	err := getJSON(txn, statsKey, &st)
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	apply(&st)
	return setJSON(txn, statsKey, st)
}

func (s *Store) writeArtifacts(cert *Certificate, art Artifacts) error {
	write := func(rel, content string) error {
		return os.WriteFile(filepath.Join(s.root, rel), []byte(content), 0o644)
	}
	if art.Whyml != "" {
		cert.WhymlFile = filepath.Join(whymlDir, cert.Hash+".mlw")
		if err := write(cert.WhymlFile, art.Whyml); err != nil {
			return fmt.Errorf("proofs: writing whyml artifact: %w", err)
		}
	}
	if art.Lean != "" {
		cert.LeanFile = filepath.Join(leanDir, cert.Hash+".lean")
		if err := write(cert.LeanFile, art.Lean); err != nil {
			return fmt.Errorf("proofs: writing lean artifact: %w", err)
		}
	}
	if art.ProverLog != "" {
		cert.LogFile = filepath.Join(logsDir, cert.Hash+".log")
		if err := write(cert.LogFile, art.ProverLog); err != nil {
			return fmt.Errorf("proofs: writing prover log: %w", err)
		}
	}

	data, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		return fmt.Errorf("proofs: encoding certificate: %w", err)
	}
	if err := write(filepath.Join(artifactsDir, cert.Hash+".json"), string(data)+"\n"); err != nil {
		return fmt.Errorf("proofs: writing certificate: %w", err)
	}
	return nil
}

func (s *Store) readCertificate(rel string) (*Certificate, error) {
	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		return nil, err
	}
	var cert Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (s *Store) removeArtifacts(hash string) {
	for _, rel := range []string{
		filepath.Join(artifactsDir, hash+".json"),
		filepath.Join(whymlDir, hash+".mlw"),
		filepath.Join(leanDir, hash+".lean"),
		filepath.Join(logsDir, hash+".log"),
	} {
		if err := os.Remove(filepath.Join(s.root, rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("removing artifact", "path", rel, "error", err)
		}
	}
}

func (s *Store) diskUsage() int64 {
	var total int64
	for _, sub := range []string{artifactsDir, whymlDir, leanDir, logsDir} {
		filepath.WalkDir(filepath.Join(s.root, sub), func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
			return nil
		})
	}
	return total
}

func certKey(hash string) []byte { return []byte(certPrefix + hash) }
func bodyKey(hash string) []byte { return []byte(bodyPrefix + hash) }

func getJSON(txn *badger.Txn, key any, v any) error {
	var k []byte
	switch t := key.(type) {
	case []byte:
		k = t
	case string:
		k = []byte(t)
	}
	item, err := txn.Get(k)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key any, v any) error {
	var k []byte
	switch t := key.(type) {
	case []byte:
		k = t
	case string:
		k = []byte(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, data)
}

// badgerLogger adapts slog to badger's logger interface.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
