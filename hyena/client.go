// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"context"
	"strconv"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "catalog"

// Client is the typed API of the engine. It checks that each reply has the
// expected kind and turns engine failures into errors.
type Client struct {
	session *Session
	// nil when catalog caching is disabled
	catalog *expirable.LRU[string, *Catalog]
	flight  singleflight.Group
	// mu guards generation, which InvalidateCatalog bumps. A refresh that
	// started under an older generation does not populate the cache.
	mu         sync.Mutex
	generation uint64
}

// Connect opens a session with cfg and wraps it in a Client.
func Connect(cfg Config) (*Client, error) {
	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(s), nil
}

// NewClient wraps an open session. The catalog cache lifetime comes from
// the session's CatalogTTL; zero disables the cache.
func NewClient(s *Session) *Client {
	c := &Client{session: s}
	if ttl := s.cfg.CatalogTTL; ttl > 0 {
		c.catalog = expirable.NewLRU[string, *Catalog](1, nil, ttl)
	}
	return c
}

// Session returns the underlying session.
func (c *Client) Session() *Session { return c.session }

// Close closes the session.
func (c *Client) Close() error { return c.session.Close() }

// expect narrows reply to T, translating SerializeError replies and
// mismatched kinds into *ReplyError.
func expect[T Reply](reply Reply, want Kind) (T, error) {
	if r, ok := reply.(T); ok {
		return r, nil
	}
	var zero T
	if se, ok := reply.(*SerializeErrorReply); ok {
		return zero, &ReplyError{Expected: want, Got: KindSerializeError, Message: se.Message}
	}
	return zero, &ReplyError{Expected: want, Got: reply.Kind()}
}

// ListColumns returns every column of the engine.
func (c *Client) ListColumns(ctx context.Context) ([]Column, error) {
	reply, err := c.session.Do(ctx, ListColumnsRequest{})
	if err != nil {
		return nil, err
	}
	r, err := expect[*ListColumnsReply](reply, KindListColumns)
	if err != nil {
		return nil, err
	}
	return r.Columns, nil
}

// AddColumn creates col and returns the id the engine assigned. col.ID is
// ignored.
func (c *Client) AddColumn(ctx context.Context, col Column) (int64, error) {
	reply, err := c.session.Do(ctx, AddColumnRequest{Name: col.Name, Type: col.DataType})
	if err != nil {
		return UnassignedColumnID, err
	}
	r, err := expect[*AddColumnReply](reply, KindAddColumn)
	if err != nil {
		return UnassignedColumnID, err
	}
	if r.Err != nil {
		return UnassignedColumnID, r.Err
	}
	c.InvalidateCatalog()
	return r.ID, nil
}

// Insert appends rows from source and returns the number the engine
// accepted.
func (c *Client) Insert(ctx context.Context, source uint32, timestamps []int64, columns ...ColumnBlock) (int64, error) {
	reply, err := c.session.Do(ctx, InsertRequest{Source: source, Timestamps: timestamps, Columns: columns})
	if err != nil {
		return 0, err
	}
	r, err := expect[*InsertReply](reply, KindInsert)
	if err != nil {
		return 0, err
	}
	if r.Err != nil {
		return 0, r.Err
	}
	return r.Count, nil
}

// Scan reads the data selected by req.
func (c *Client) Scan(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	reply, err := c.session.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	r, err := expect[*ScanReply](reply, KindScan)
	if err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Result == nil {
		return &ScanResult{Columns: map[int64]ColumnValues{}}, nil
	}
	return r.Result, nil
}

// RefreshCatalog returns the engine catalog with columns sorted by id. A
// cached copy is returned when one is fresh, unless force is set.
// Concurrent callers share a single engine round trip.
func (c *Client) RefreshCatalog(ctx context.Context, force bool) (*Catalog, error) {
	if force {
		c.InvalidateCatalog()
	} else if c.catalog != nil {
		if cat, ok := c.catalog.Get(catalogKey); ok {
			return cat, nil
		}
	}
	gen := c.currentGeneration()
	// The round trip is shared, so it must not die with whichever caller
	// started it. Each caller still stops waiting on its own ctx.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(catalogKey+"/"+strconv.FormatUint(gen, 10), func() (any, error) {
		reply, err := c.session.Do(flightCtx, RefreshCatalogRequest{})
		if err != nil {
			return nil, err
		}
		r, err := expect[*CatalogReply](reply, KindRefreshCatalog)
		if err != nil {
			return nil, err
		}
		var cat *Catalog
		if r.Catalog != nil {
			cat = NewCatalog(r.Catalog.Columns, r.Catalog.Partitions)
		} else {
			cat = NewCatalog(nil, nil)
		}
		c.mu.Lock()
		if c.catalog != nil && c.generation == gen {
			c.catalog.Add(catalogKey, cat)
		}
		c.mu.Unlock()
		return cat, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InvalidateCatalog drops the cached catalog.
func (c *Client) InvalidateCatalog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.catalog != nil {
		c.catalog.Remove(catalogKey)
	}
}

func (c *Client) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// FilterBuilder returns a builder resolving columns in the current catalog.
func (c *Client) FilterBuilder(ctx context.Context) (*FilterBuilder, error) {
	cat, err := c.RefreshCatalog(ctx, false)
	if err != nil {
		return nil, err
	}
	return NewFilterBuilder(cat), nil
}
