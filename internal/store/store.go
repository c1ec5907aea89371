package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/tabvault/tabvault-server/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities
	Collections    *Entity[domain.Collection]
	Folders        *Entity[domain.Folder]
	Tabs           *Entity[domain.Tab]
	SnoozedItems   *Entity[domain.SnoozedItem]
	WindowMetadata *Entity[domain.WindowMetadata]
}

// New creates a new Store instance with the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	// Initialize generic entities
	store.initCollections()
	store.initFolders()
	store.initTabs()
	store.initSnoozedItems()
	store.initWindowMetadata()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Ping verifies the database is responsive.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(_ *badger.Txn) error { return nil })
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// initCollections initializes the Collections entity on the store.
// Bound collections are indexed by their live window id so the binding
// cache can rebuild its window map from disk.
func (s *Store) initCollections() {
	s.Collections = NewEntity[domain.Collection](s, "coll:").
		WithIndex("window", func(c *domain.Collection) []string {
			if c.WindowID == nil {
				return nil
			}
			return []string{strconv.Itoa(*c.WindowID)}
		})
}

// initFolders initializes the Folders entity, indexed by owning collection.
func (s *Store) initFolders() {
	s.Folders = NewEntity[domain.Folder](s, "fold:").
		WithIndex("collection", func(f *domain.Folder) []string {
			return []string{f.CollectionID}
		})
}

// initTabs initializes the Tabs entity, indexed by owning folder.
func (s *Store) initTabs() {
	s.Tabs = NewEntity[domain.Tab](s, "tab:").
		WithIndex("folder", func(t *domain.Tab) []string {
			return []string{t.FolderID}
		})
}

// initSnoozedItems initializes the SnoozedItems entity. Tabs snoozed as
// part of a whole window carry the window snooze id and are indexed by it;
// individually snoozed tabs are not.
func (s *Store) initSnoozedItems() {
	s.SnoozedItems = NewEntity[domain.SnoozedItem](s, "snz:").
		WithIndex("windowSnooze", func(si *domain.SnoozedItem) []string {
			if si.WindowSnoozeID == "" {
				return nil
			}
			return []string{si.WindowSnoozeID}
		})
}

// initWindowMetadata initializes the WindowMetadata entity, keyed by the
// window snooze id it describes.
func (s *Store) initWindowMetadata() {
	s.WindowMetadata = NewEntity[domain.WindowMetadata](s, "wmeta:")
}
