// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger persists experiment state in an embedded BadgerDB.
//
// The engine's unit of persistence is a single JSON snapshot, so the
// adapter is deliberately small: one key per experiment, full rewrite
// on every save. BadgerDB gives us crash-safe local writes without a
// server process, which matches the device-local deployment model.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/uplift/engine"
)

// stateKeyPrefix namespaces experiment snapshots within the database.
const stateKeyPrefix = "uplift/experiment/"

// Config holds configuration for the BadgerDB store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, internal
	// logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for tests: no disk I/O, no sync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed engine.PersistencePort.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db  *badger.DB
	key []byte
}

// Open opens the database and returns a store for the named experiment.
//
// Inputs:
//   - cfg: Database configuration. Path is required unless InMemory.
//   - experimentID: Distinguishes snapshots when several experiments
//     share one database. Must not be empty.
//
// Outputs:
//   - *Store: The store. Caller must Close it.
//   - error: Invalid configuration or database open failure. These are
//     fatal at startup; there is no degraded mode without durability
//     having been probed at least once.
func Open(cfg Config, experimentID string) (*Store, error) {
	if experimentID == "" {
		return nil, errors.New("experiment id is required")
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &Store{
		db:  db,
		key: []byte(stateKeyPrefix + experimentID),
	}, nil
}

// Load implements engine.PersistencePort.
func (s *Store) Load(_ context.Context) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, engine.ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("load experiment state: %w", err)
	}
	return data, nil
}

// Save implements engine.PersistencePort.
func (s *Store) Save(_ context.Context, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
	if err != nil {
		return fmt.Errorf("save experiment state: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ engine.PersistencePort = (*Store)(nil)
