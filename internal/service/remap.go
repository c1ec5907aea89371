package service

import (
	"context"
	"fmt"

	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/store"
)

// Remapper maintains the dual-ID scheme: every tab carries a durable id
// that is stable forever and an optional ephemeral id valid only while a
// live counterpart exists. All mutation of the ephemeral side goes through
// this service; an ephemeral id is never inferred or reused across two
// different live tabs.
type Remapper struct {
	store  *store.Store
	logger *logger.Logger
}

// NewRemapper creates a remapper.
func NewRemapper(st *store.Store, log *logger.Logger) *Remapper {
	return &Remapper{store: st, logger: log}
}

// SetTabLive records the ephemeral id of a tab's newly created live
// counterpart.
func (r *Remapper) SetTabLive(ctx context.Context, tabID string, liveID int) error {
	tab, err := r.store.Tabs.Get(ctx, tabID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("tab %s not found", tabID)
		}
		return fmt.Errorf("get tab: %w", err)
	}

	tab.SetLive(liveID)
	if err := r.store.Tabs.Update(ctx, tabID, tab); err != nil {
		return fmt.Errorf("persist live id: %w", err)
	}
	return nil
}

// ClearTabLive drops a tab's ephemeral id once its live counterpart is
// closed.
func (r *Remapper) ClearTabLive(ctx context.Context, tabID string) error {
	tab, err := r.store.Tabs.Get(ctx, tabID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("tab %s not found", tabID)
		}
		return fmt.Errorf("get tab: %w", err)
	}

	if !tab.HasLive() {
		return nil
	}

	tab.ClearLive()
	if err := r.store.Tabs.Update(ctx, tabID, tab); err != nil {
		return fmt.Errorf("persist live id clear: %w", err)
	}
	return nil
}

// ClearCollectionLive drops the ephemeral id of every tab in a collection.
// Used when a bound window goes away or a collection is captured without
// keepActive.
func (r *Remapper) ClearCollectionLive(ctx context.Context, collectionID string) error {
	for folder, err := range r.store.Folders.ListByIndex(ctx, "collection", collectionID) {
		if err != nil {
			return fmt.Errorf("list folders: %w", err)
		}
		for tab, err := range r.store.Tabs.ListByIndex(ctx, "folder", folder.ID) {
			if err != nil {
				return fmt.Errorf("list tabs: %w", err)
			}
			if !tab.HasLive() {
				continue
			}
			tab.ClearLive()
			if err := r.store.Tabs.Update(ctx, tab.ID, tab); err != nil {
				return fmt.Errorf("persist live id clear: %w", err)
			}
		}
	}

	r.logger.Debug("cleared live ids", "collection_id", collectionID)
	return nil
}
