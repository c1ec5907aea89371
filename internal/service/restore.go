package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/ratelimit"
	"github.com/tabvault/tabvault-server/internal/store"
	"github.com/tabvault/tabvault-server/internal/validation"
)

// RestoreRequest describes a restoration of a saved collection.
type RestoreRequest struct {
	CollectionID    string `json:"collection_id" validate:"required"`
	CreateNewWindow bool   `json:"create_new_window"`
	WindowID        *int   `json:"window_id,omitempty"`
	Focused         bool   `json:"focused"`
	WindowState     string `json:"window_state,omitempty" validate:"omitempty,oneof=normal maximized fullscreen"`
}

// RestoreStats summarizes a restoration.
type RestoreStats struct {
	TabsRestored   int `json:"tabs_restored"`
	TabsSkipped    int `json:"tabs_skipped"`
	GroupsRestored int `json:"groups_restored"`
}

// RestoreResult reports where the collection was restored and how it went.
type RestoreResult struct {
	CollectionID string        `json:"collection_id"`
	WindowID     int           `json:"window_id"`
	Tabs         []*domain.Tab `json:"tabs"`
	Stats        RestoreStats  `json:"stats"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// TabSpec is one tab for the shared batched-creation path.
type TabSpec struct {
	Props browser.CreateTabProps
	Label string // identifies the tab in warnings, usually its URL
}

// RestoreService converts a durable Collection tree back into live browser
// state. Creation happens in fixed-size batches with a fixed delay between
// them; calls within one batch are issued concurrently and awaited together,
// so creation order inside a batch is not guaranteed and per-folder order is
// always re-derived from stored positions.
type RestoreService struct {
	store     *store.Store
	ctrl      browser.Controller
	binding   *BindingService
	remapper  *Remapper
	limiter   *ratelimit.KeyedRateLimiter
	validator *validation.Validator
	logger    *logger.Logger

	batchSize  int
	batchDelay time.Duration
}

// NewRestoreService creates a restore service.
func NewRestoreService(
	st *store.Store,
	ctrl browser.Controller,
	binding *BindingService,
	remapper *Remapper,
	limiter *ratelimit.KeyedRateLimiter,
	v *validation.Validator,
	log *logger.Logger,
	batchSize int,
	batchDelay time.Duration,
) *RestoreService {
	if batchSize < 1 {
		batchSize = 1
	}
	return &RestoreService{
		store:      st,
		ctrl:       ctrl,
		binding:    binding,
		remapper:   remapper,
		limiter:    limiter,
		validator:  v,
		logger:     log,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// restoreItem pairs a durable tab with its folder for ordering and grouping.
type restoreItem struct {
	tab    *domain.Tab
	folder *domain.Folder
}

// Restore reopens a saved collection, either into a fresh placeholder window
// or an existing one. Single-tab failures become warnings, never aborts; the
// caller always gets a result with both successes and warnings.
func (s *RestoreService) Restore(ctx context.Context, req RestoreRequest) (*RestoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if !req.CreateNewWindow && req.WindowID == nil {
		return nil, errors.Validation("window_id is required when create_new_window is false")
	}

	collection, err := s.store.Collections.Get(ctx, req.CollectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("collection %s not found", req.CollectionID)
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}

	items, skipped, err := s.loadTree(ctx, collection.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.EmptyRestore("collection has no restorable tabs")
	}

	warnings := append([]string(nil), skipped...)

	windowID, seedTabs, err := s.resolveWindow(ctx, req)
	if err != nil {
		return nil, err
	}

	// Create the tabs in batches, then group and remap. Index carries the
	// stored order so the window lays out correctly regardless of which
	// creation call inside a batch finished first.
	specs := make([]TabSpec, len(items))
	for i, item := range items {
		idx := i
		specs[i] = TabSpec{
			Props: browser.CreateTabProps{
				WindowID: &windowID,
				URL:      item.tab.URL,
				Index:    &idx,
				Pinned:   item.tab.IsPinned,
			},
			Label: item.tab.URL,
		}
	}

	created, batchWarnings := s.CreateTabsBatched(ctx, paceKey(windowID), specs)
	warnings = append(warnings, batchWarnings...)
	warnings = append(warnings, closeSeedTabs(ctx, s.ctrl, seedTabs, created)...)

	groupWarnings, groupsRestored := s.regroup(ctx, items, created)
	warnings = append(warnings, groupWarnings...)

	if err := s.binding.Bind(ctx, collection.ID, windowID); err != nil {
		return nil, fmt.Errorf("bind restored collection: %w", err)
	}

	restored := 0
	resultTabs := make([]*domain.Tab, 0, len(items))
	for i, item := range items {
		if created[i] == nil {
			continue
		}
		restored++
		resultTabs = append(resultTabs, item.tab)
	}

	s.logger.Info("collection restored",
		"collection_id", collection.ID,
		"window_id", windowID,
		"tabs_restored", restored,
		"groups_restored", groupsRestored,
		"warnings", len(warnings),
	)

	return &RestoreResult{
		CollectionID: collection.ID,
		WindowID:     windowID,
		Tabs:         resultTabs,
		Stats: RestoreStats{
			TabsRestored:   restored,
			TabsSkipped:    len(skipped),
			GroupsRestored: groupsRestored,
		},
		Warnings: warnings,
	}, nil
}

// loadTree loads the collection's folders and tabs in stored order, applying
// the same capturability filter as capture so records persisted by an older
// build never resurrect internal pages.
func (s *RestoreService) loadTree(ctx context.Context, collectionID string) ([]restoreItem, []string, error) {
	var folders []*domain.Folder
	for folder, err := range s.store.Folders.ListByIndex(ctx, "collection", collectionID) {
		if err != nil {
			return nil, nil, fmt.Errorf("list folders: %w", err)
		}
		folders = append(folders, folder)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Position < folders[j].Position })

	var items []restoreItem
	var skipped []string
	for _, folder := range folders {
		var tabs []*domain.Tab
		for tab, err := range s.store.Tabs.ListByIndex(ctx, "folder", folder.ID) {
			if err != nil {
				return nil, nil, fmt.Errorf("list tabs: %w", err)
			}
			tabs = append(tabs, tab)
		}
		sort.Slice(tabs, func(i, j int) bool { return tabs[i].Position < tabs[j].Position })

		for _, tab := range tabs {
			if !browser.Capturable(tab.URL) {
				skipped = append(skipped, fmt.Sprintf("skipped non-restorable tab: %s", tab.URL))
				continue
			}
			items = append(items, restoreItem{tab: tab, folder: folder})
		}
	}
	return items, skipped, nil
}

// resolveWindow returns the destination window id, opening a placeholder
// window first when requested. The placeholder's default tab ids are returned
// for later removal; a browser closes a window whose last tab is removed, so
// the default tab must survive until restored tabs exist beside it.
func (s *RestoreService) resolveWindow(ctx context.Context, req RestoreRequest) (int, []int, error) {
	if !req.CreateNewWindow {
		if _, err := s.ctrl.GetWindow(ctx, *req.WindowID); err != nil {
			return 0, nil, mapBrowserErr(err, "get window")
		}
		return *req.WindowID, nil, nil
	}

	window, err := s.ctrl.CreateWindow(ctx, browser.CreateWindowProps{
		Focused: req.Focused,
		State:   req.WindowState,
	})
	if err != nil {
		return 0, nil, mapBrowserErr(err, "create window")
	}

	var seed []int
	if defaults, err := s.ctrl.QueryTabs(ctx, &window.ID); err == nil {
		for _, t := range defaults {
			seed = append(seed, t.ID)
		}
	}
	return window.ID, seed, nil
}

// closeSeedTabs removes a fresh window's default tabs once at least one
// restored tab was created beside them. With nothing created the seed stays,
// keeping the window alive for the user to see.
func closeSeedTabs(ctx context.Context, ctrl browser.Controller, seed []int, created []*browser.Tab) []string {
	if len(seed) == 0 {
		return nil
	}

	anyCreated := false
	for _, t := range created {
		if t != nil {
			anyCreated = true
			break
		}
	}
	if !anyCreated {
		return nil
	}

	if err := ctrl.RemoveTabs(ctx, seed); err != nil {
		return []string{fmt.Sprintf("could not remove placeholder tab: %v", err)}
	}
	return nil
}

// regroup attaches created tabs to live groups, one group per non-ungrouped
// folder, memoized for the whole restore. The group's title, color and
// collapsed state are applied exactly once, on creation. Also remaps each
// created tab's ephemeral id. Per-tab failures become warnings.
func (s *RestoreService) regroup(ctx context.Context, items []restoreItem, created []*browser.Tab) ([]string, int) {
	var warnings []string
	liveGroups := make(map[string]int) // folder id -> live group id
	groupsRestored := 0

	for i, item := range items {
		live := created[i]
		if live == nil {
			continue
		}

		if err := s.remapper.SetTabLive(ctx, item.tab.ID, live.ID); err != nil {
			warnings = append(warnings, fmt.Sprintf("remap %s: %v", item.tab.URL, err))
		} else {
			item.tab.SetLive(live.ID)
		}

		if item.folder.IsUngrouped {
			continue
		}

		groupID, known := liveGroups[item.folder.ID]
		if !known {
			newGroup, err := s.ctrl.GroupTabs(ctx, browser.GroupProps{TabIDs: []int{live.ID}})
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("group %s: %v", item.tab.URL, err))
				continue
			}
			liveGroups[item.folder.ID] = newGroup
			groupsRestored++

			title, color, collapsed := item.folder.Name, item.folder.Color, item.folder.Collapsed
			err = s.ctrl.UpdateGroup(ctx, newGroup, browser.UpdateGroupProps{
				Title:     &title,
				Color:     &color,
				Collapsed: &collapsed,
			})
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("style group %q: %v", item.folder.Name, err))
			}
			continue
		}

		if _, err := s.ctrl.GroupTabs(ctx, browser.GroupProps{TabIDs: []int{live.ID}, GroupID: &groupID}); err != nil {
			warnings = append(warnings, fmt.Sprintf("group %s: %v", item.tab.URL, err))
		}
	}

	return warnings, groupsRestored
}

// CreateTabsBatched creates tabs through the shared batched path: fixed-size
// batches, a fixed delay between batches, concurrent creation within a
// batch, and per-window pacing. The returned slice is aligned with specs;
// a nil entry means that tab failed and has a matching warning. Window wake
// reuses this path.
func (s *RestoreService) CreateTabsBatched(ctx context.Context, key string, specs []TabSpec) ([]*browser.Tab, []string) {
	created := make([]*browser.Tab, len(specs))
	var mu sync.Mutex
	var warnings []string

	for start := 0; start < len(specs); start += s.batchSize {
		if start > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("restore interrupted: %v", ctx.Err()))
				mu.Unlock()
				return created, warnings
			}
		}

		end := min(start+s.batchSize, len(specs))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				if err := s.limiter.Wait(ctx, key); err != nil {
					mu.Lock()
					warnings = append(warnings, fmt.Sprintf("create %s: %v", specs[i].Label, err))
					mu.Unlock()
					return
				}

				tab, err := s.ctrl.CreateTab(ctx, specs[i].Props)
				if err != nil {
					mu.Lock()
					warnings = append(warnings, fmt.Sprintf("create %s: %v", specs[i].Label, err))
					mu.Unlock()
					return
				}
				created[i] = tab
			}(i)
		}
		wg.Wait()
	}

	return created, warnings
}

// paceKey is the rate-limiter key for control calls against one window.
func paceKey(windowID int) string {
	return fmt.Sprintf("window:%d", windowID)
}
