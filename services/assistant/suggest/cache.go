// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suggest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// cacheDefaultTTL keeps suggestion reuse short: the underlying school
// data refreshes daily, so an hour is plenty.
const cacheDefaultTTL = time.Hour

// cacheKeyPrefix versions the storage layout.
const cacheKeyPrefix = "suggest/v1/"

// Cache persists validated suggestion batches in BadgerDB.
//
// Description:
//
//	Keyed by a SHA256 digest of the query and response, so identical
//	exchanges reuse the model call. TTL expiry is enforced by BadgerDB's
//	native GC; expired keys surface as ErrKeyNotFound and read as a
//	miss. All methods are nil-safe: a nil *Cache reads as a permanent
//	miss and a no-op write, which is the correct degraded mode for
//	tests and deployments without a cache directory.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache creates a Cache backed by an opened BadgerDB instance.
//
// Inputs:
//   - db: Opened BadgerDB. The caller owns its lifecycle.
//   - ttl: Entry lifetime. 0 uses the one-hour default.
//   - logger: Nil uses slog.Default().
func NewCache(db *badger.DB, ttl time.Duration, logger *slog.Logger) *Cache {
	if db == nil {
		panic("suggest.NewCache: db must not be nil")
	}
	if ttl <= 0 {
		ttl = cacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{db: db, ttl: ttl, logger: logger}
}

// Get retrieves a cached suggestion batch.
//
// Outputs:
//   - []SuggestedQuery: The cached batch. Nil on miss.
//   - bool: True on hit.
//
// Thread Safety: Safe for concurrent use, nil-safe.
func (c *Cache) Get(ctx context.Context, userQuery, assistantResponse string) ([]SuggestedQuery, bool) {
	if c == nil {
		return nil, false
	}
	if err := ctx.Err(); err != nil {
		return nil, false
	}

	key := cacheKey(userQuery, assistantResponse)

	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("suggestion cache read failed", slog.String("error", err.Error()))
		return nil, false
	}

	var batch []SuggestedQuery
	if err := json.Unmarshal(raw, &batch); err != nil {
		c.logger.Warn("suggestion cache entry malformed", slog.String("error", err.Error()))
		return nil, false
	}
	if len(batch) == 0 {
		return nil, false
	}

	c.logger.Debug("suggestion cache: hit", slog.Int("count", len(batch)))
	return batch, true
}

// Put stores a suggestion batch with the configured TTL. Failures are
// logged and swallowed; caching is best-effort.
//
// Thread Safety: Safe for concurrent use, nil-safe.
func (c *Cache) Put(ctx context.Context, userQuery, assistantResponse string, batch []SuggestedQuery) {
	if c == nil || len(batch) == 0 {
		return
	}
	if err := ctx.Err(); err != nil {
		return
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		c.logger.Warn("suggestion cache encode failed", slog.String("error", err.Error()))
		return
	}

	key := cacheKey(userQuery, assistantResponse)
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, raw).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn("suggestion cache write failed", slog.String("error", err.Error()))
	}
}

// cacheKey digests the exchange into a fixed-size BadgerDB key.
func cacheKey(userQuery, assistantResponse string) []byte {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s", userQuery, assistantResponse)
	return []byte(cacheKeyPrefix + hex.EncodeToString(h.Sum(nil)))
}
