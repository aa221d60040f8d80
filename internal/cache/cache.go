// Package cache holds the authoritative local copy of the invoice collection.
//
// Every mutation goes through the Cache methods. Field edits are optimistic: the new
// value is visible to readers before the store acknowledges it, and is rolled back if
// the store rejects it.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"invoicesync/internal/logger"
	"invoicesync/pkg/models"
)

// Store is the write side of the remote collection.
type Store interface {
	PatchField(ctx context.Context, id string, field models.Field, value any) error
	CreateRecord(ctx context.Context, record *models.Record) (string, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	records    models.Collection
	generation uint64

	store Store
	log   zerolog.Logger
}

// New creates an empty cache writing through store.
func New(store Store) *Cache {
	return &Cache{
		records: models.Collection{},
		store:   store,
		log:     logger.WithComponent("cache"),
	}
}

// Load replaces the whole collection. The cache keeps its own copy.
func (c *Cache) Load(collection models.Collection) {
	fresh := collection.Clone()
	for id, r := range fresh {
		if r == nil {
			delete(fresh, id)
			continue
		}
		r.ID = id
	}

	c.mu.Lock()
	c.records = fresh
	c.generation++
	c.mu.Unlock()

	c.log.Debug().
		Int("records", len(fresh)).
		Msg("Collection loaded")
}

// Snapshot returns a deep copy of the collection.
func (c *Cache) Snapshot() models.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records.Clone()
}

// Get returns a copy of one record.
func (c *Cache) Get(id string) (*models.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// MutateField sets one field of one record and writes it to the store. The new value
// is applied before the store is called. If the write fails the previous value is
// restored and a *SaveFailedError is returned. Authorization is the caller's concern.
func (c *Cache) MutateField(ctx context.Context, id string, field models.Field, value any) error {
	const op = "MutateField"

	c.mu.Lock()
	record, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%s: %q: %w", op, id, ErrRecordNotFound)
	}
	old, err := record.Get(field)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := record.Set(field, value); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	generation := c.generation
	c.mu.Unlock()

	c.log.Debug().
		Str("id", id).
		Str("field", string(field)).
		Msg("Optimistic update applied")

	if err := c.store.PatchField(ctx, id, field, value); err != nil {
		reverted := c.rollback(generation, id, field, old)
		c.log.Error().
			Err(err).
			Str("id", id).
			Str("field", string(field)).
			Bool("reverted", reverted).
			Msg("Field update rejected")
		return &SaveFailedError{ID: id, Field: field, OldValue: old, Reverted: reverted, Err: err}
	}
	return nil
}

// rollback restores old unless the collection was reloaded since the write began.
func (c *Cache) rollback(generation uint64, id string, field models.Field, old any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	record, ok := c.records[id]
	if !ok {
		return false
	}
	return record.Set(field, old) == nil
}

// Create stores a new record and inserts it under the store-assigned ID.
func (c *Cache) Create(ctx context.Context, record *models.Record) (string, error) {
	id, err := c.store.CreateRecord(ctx, record)
	if err != nil {
		c.log.Error().Err(err).Msg("Create rejected")
		return "", &CreateFailedError{Err: err}
	}

	inserted := record.Clone()
	inserted.ID = id
	if inserted.Comment == nil {
		inserted.Comment = []models.Comment{}
	}

	c.mu.Lock()
	c.records[id] = inserted
	c.mu.Unlock()

	c.log.Info().Str("id", id).Msg("Record inserted")
	return id, nil
}

// Remove deletes a record from the store and then from the cache. Callers confirm
// with the user beforehand; the cache never prompts.
func (c *Cache) Remove(ctx context.Context, id string) error {
	const op = "Remove"

	c.mu.RLock()
	_, ok := c.records[id]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %q: %w", op, id, ErrRecordNotFound)
	}

	if err := c.store.DeleteRecord(ctx, id); err != nil {
		c.log.Error().Err(err).Str("id", id).Msg("Delete rejected")
		return &DeleteFailedError{ID: id, Err: err}
	}

	c.mu.Lock()
	delete(c.records, id)
	c.mu.Unlock()

	c.log.Info().Str("id", id).Msg("Record removed")
	return nil
}
