package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/store"
)

// CollectionService orchestrates collection reads, renames, and deletion.
// Capture and restore own the write paths that build collections; this
// service covers everything around them.
type CollectionService struct {
	store   *store.Store
	binding *BindingService
	indexer TabIndexer
	logger  *logger.Logger
}

// NewCollectionService creates a collection service. indexer may be nil.
func NewCollectionService(st *store.Store, binding *BindingService, indexer TabIndexer, log *logger.Logger) *CollectionService {
	return &CollectionService{
		store:   st,
		binding: binding,
		indexer: indexer,
		logger:  log,
	}
}

// CollectionSummary is a collection with child counts but without the tree.
type CollectionSummary struct {
	Collection  *domain.Collection
	FolderCount int
	TabCount    int
}

// FolderTree is a folder with its tabs in position order.
type FolderTree struct {
	Folder *domain.Folder
	Tabs   []*domain.Tab
}

// CollectionTree is a fully loaded collection.
type CollectionTree struct {
	Collection *domain.Collection
	Folders    []*FolderTree
}

// List returns summaries of all collections, most recently accessed first.
func (s *CollectionService) List(ctx context.Context) ([]*CollectionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var summaries []*CollectionSummary
	for collection, err := range s.store.Collections.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}

		summary := &CollectionSummary{Collection: collection}
		for folder, err := range s.store.Folders.ListByIndex(ctx, "collection", collection.ID) {
			if err != nil {
				return nil, fmt.Errorf("list folders: %w", err)
			}
			summary.FolderCount++
			for _, err := range s.store.Tabs.ListByIndex(ctx, "folder", folder.ID) {
				if err != nil {
					return nil, fmt.Errorf("list tabs: %w", err)
				}
				summary.TabCount++
			}
		}
		summaries = append(summaries, summary)
	}

	slices.SortFunc(summaries, func(a, b *CollectionSummary) int {
		return b.Collection.LastAccessed.Compare(a.Collection.LastAccessed)
	})

	return summaries, nil
}

// Get returns a collection with its full folder and tab tree, both levels
// in position order.
func (s *CollectionService) Get(ctx context.Context, collectionID string) (*CollectionTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collection, err := s.store.Collections.Get(ctx, collectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("collection %s not found", collectionID)
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}

	tree := &CollectionTree{Collection: collection}
	for folder, err := range s.store.Folders.ListByIndex(ctx, "collection", collectionID) {
		if err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}

		ft := &FolderTree{Folder: folder}
		for tab, err := range s.store.Tabs.ListByIndex(ctx, "folder", folder.ID) {
			if err != nil {
				return nil, fmt.Errorf("list tabs: %w", err)
			}
			ft.Tabs = append(ft.Tabs, tab)
		}
		slices.SortFunc(ft.Tabs, func(a, b *domain.Tab) int {
			return cmp.Compare(a.Position, b.Position)
		})
		tree.Folders = append(tree.Folders, ft)
	}
	slices.SortFunc(tree.Folders, func(a, b *FolderTree) int {
		return cmp.Compare(a.Folder.Position, b.Folder.Position)
	})

	return tree, nil
}

// Rename changes a collection's display name and refreshes the search
// documents that carry the old name.
func (s *CollectionService) Rename(ctx context.Context, collectionID, name string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.Validation("name must not be empty")
	}

	collection, err := s.store.Collections.Get(ctx, collectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("collection %s not found", collectionID)
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}

	collection.Name = name
	collection.Touch()
	if err := s.store.Collections.Update(ctx, collectionID, collection); err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}

	// The collection name is denormalized into each tab's search document.
	if s.indexer != nil {
		for folder, err := range s.store.Folders.ListByIndex(ctx, "collection", collectionID) {
			if err != nil {
				break
			}
			for tab, err := range s.store.Tabs.ListByIndex(ctx, "folder", folder.ID) {
				if err != nil {
					break
				}
				if err := s.indexer.IndexTab(ctx, tab, collection); err != nil {
					s.logger.Warn("failed to reindex tab after rename", "tab_id", tab.ID, "error", err)
				}
			}
		}
	}

	s.logger.Info("collection renamed", "collection_id", collectionID, "name", name)
	return collection, nil
}

// Delete removes a collection with its folders and tabs. A bound collection
// is unbound first; its live window stays open.
func (s *CollectionService) Delete(ctx context.Context, collectionID string) error {
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

	if collection.IsBound() {
		if err := s.binding.Unbind(ctx, collectionID); err != nil {
			return fmt.Errorf("unbind collection: %w", err)
		}
	}

	tabCount := 0
	for folder, err := range s.store.Folders.ListByIndex(ctx, "collection", collectionID) {
		if err != nil {
			return fmt.Errorf("list folders: %w", err)
		}
		for tab, err := range s.store.Tabs.ListByIndex(ctx, "folder", folder.ID) {
			if err != nil {
				return fmt.Errorf("list tabs: %w", err)
			}
			if err := s.store.Tabs.Delete(ctx, tab.ID); err != nil {
				return fmt.Errorf("delete tab: %w", err)
			}
			if s.indexer != nil {
				if err := s.indexer.RemoveTab(ctx, tab.ID); err != nil {
					s.logger.Warn("failed to remove tab from search index", "tab_id", tab.ID, "error", err)
				}
			}
			tabCount++
		}
		if err := s.store.Folders.Delete(ctx, folder.ID); err != nil {
			return fmt.Errorf("delete folder: %w", err)
		}
	}

	if err := s.store.Collections.Delete(ctx, collectionID); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	s.logger.Info("collection deleted", "collection_id", collectionID, "tabs", tabCount)
	return nil
}
