package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/store"
)

// BindingService owns the live-window to durable-collection association.
// The cache is in-memory only; after a cold start it is repopulated lazily
// by GetForWindow or wholesale by Rebuild. A collection's IsActive and
// WindowID fields change only through Bind and Unbind, never through a
// generic update.
type BindingService struct {
	store    *store.Store
	ctrl     browser.Controller
	remapper *Remapper
	logger   *logger.Logger

	mu    sync.Mutex
	cache map[int]string // live window id -> collection id
}

// NewBindingService creates a binding service with an empty cache.
func NewBindingService(st *store.Store, ctrl browser.Controller, remapper *Remapper, log *logger.Logger) *BindingService {
	return &BindingService{
		store:    st,
		ctrl:     ctrl,
		remapper: remapper,
		logger:   log,
		cache:    make(map[int]string),
	}
}

// Bind associates a collection with a live window and records the entry in
// the cache. Returns ErrNotFound when the collection does not exist.
func (s *BindingService) Bind(ctx context.Context, collectionID string, windowID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	collection, err := s.store.Collections.Get(ctx, collectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("collection %s not found", collectionID)
		}
		return fmt.Errorf("get collection: %w", err)
	}

	collection.Bind(windowID)
	if err := s.store.Collections.Update(ctx, collectionID, collection); err != nil {
		return fmt.Errorf("persist binding: %w", err)
	}

	s.mu.Lock()
	s.cache[windowID] = collectionID
	s.mu.Unlock()

	s.logger.Info("collection bound",
		"collection_id", collectionID,
		"window_id", windowID,
	)
	return nil
}

// Unbind detaches a collection from its window and drops the cache entry.
// Idempotent on an already-unbound collection.
func (s *BindingService) Unbind(ctx context.Context, collectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	collection, err := s.store.Collections.Get(ctx, collectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("collection %s not found", collectionID)
		}
		return fmt.Errorf("get collection: %w", err)
	}

	oldWindow := collection.WindowID

	collection.Unbind()
	if err := s.store.Collections.Update(ctx, collectionID, collection); err != nil {
		return fmt.Errorf("persist unbinding: %w", err)
	}

	// Unbound means no live counterpart; stored ephemeral ids go with it.
	if err := s.remapper.ClearCollectionLive(ctx, collectionID); err != nil {
		return fmt.Errorf("clear live ids: %w", err)
	}

	if oldWindow != nil {
		s.mu.Lock()
		if s.cache[*oldWindow] == collectionID {
			delete(s.cache, *oldWindow)
		}
		s.mu.Unlock()
	}

	s.logger.Info("collection unbound", "collection_id", collectionID)
	return nil
}

// GetForWindow resolves the collection bound to a live window. Cache hits
// return directly; on a miss the store is queried by window id and the cache
// repopulated. Absent in both returns nil with no error.
func (s *BindingService) GetForWindow(ctx context.Context, windowID int) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	collectionID, hit := s.cache[windowID]
	s.mu.Unlock()

	if hit {
		collection, err := s.store.Collections.Get(ctx, collectionID)
		if err == nil {
			return collection, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get collection: %w", err)
		}
		// Stale entry pointing at a deleted collection.
		s.mu.Lock()
		delete(s.cache, windowID)
		s.mu.Unlock()
	}

	collection, err := s.store.Collections.GetByIndex(ctx, "window", strconv.Itoa(windowID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup by window: %w", err)
	}

	s.mu.Lock()
	s.cache[windowID] = collection.ID
	s.mu.Unlock()

	return collection, nil
}

// Rebuild replaces the cache wholesale by scanning all active collections
// and cross-checking each against currently open windows. Collections bound
// to windows that no longer exist are excluded as orphans.
func (s *BindingService) Rebuild(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fresh := make(map[int]string)

	for collection, err := range s.store.Collections.List(ctx) {
		if err != nil {
			return fmt.Errorf("list collections: %w", err)
		}
		if !collection.IsBound() {
			continue
		}

		if _, err := s.ctrl.GetWindow(ctx, *collection.WindowID); err != nil {
			s.logger.Debug("excluding orphaned binding",
				"collection_id", collection.ID,
				"window_id", *collection.WindowID,
			)
			// The window went away out-of-band; its tabs have no live
			// counterparts anymore.
			if err := s.remapper.ClearCollectionLive(ctx, collection.ID); err != nil {
				s.logger.Warn("clearing live ids for orphan failed",
					"collection_id", collection.ID, "error", err)
			}
			continue
		}

		fresh[*collection.WindowID] = collection.ID
	}

	s.mu.Lock()
	s.cache = fresh
	s.mu.Unlock()

	s.logger.Info("binding cache rebuilt", "entries", len(fresh))
	return nil
}

// Entries returns a copy of the current cache contents.
func (s *BindingService) Entries() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.cache))
	for w, c := range s.cache {
		out[w] = c
	}
	return out
}

// Clear drops every cache entry. Used for tests and recovery.
func (s *BindingService) Clear() {
	s.mu.Lock()
	s.cache = make(map[int]string)
	s.mu.Unlock()
}
