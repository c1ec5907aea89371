package service

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/id"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/store"
	"github.com/tabvault/tabvault-server/internal/validation"
)

// DefaultCollectionName is the fallback when no hostname dominates the
// window's tabs.
const DefaultCollectionName = "New Collection"

// CaptureRequest describes a window snapshot.
type CaptureRequest struct {
	WindowID   int      `json:"window_id"`
	Name       string   `json:"name" validate:"required,max=256"`
	Tags       []string `json:"tags,omitempty"`
	KeepActive bool     `json:"keep_active"`
}

// CaptureStats summarizes a capture.
type CaptureStats struct {
	TabsCaptured    int `json:"tabs_captured"`
	TabsSkipped     int `json:"tabs_skipped"`
	FoldersCaptured int `json:"folders_captured"`
}

// CaptureResult is the durable tree a capture produced, plus stats and
// per-skip warnings.
type CaptureResult struct {
	Collection *domain.Collection `json:"collection"`
	Folders    []*domain.Folder   `json:"folders"`
	Tabs       []*domain.Tab      `json:"tabs"`
	Stats      CaptureStats       `json:"stats"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// CaptureService converts a live window into a durable Collection tree.
type CaptureService struct {
	store     *store.Store
	ctrl      browser.Controller
	binding   *BindingService
	remapper  *Remapper
	indexer   TabIndexer
	validator *validation.Validator
	logger    *logger.Logger
}

// TabIndexer receives saved tabs for full-text search. Indexing is
// best-effort; a failed index never fails the capture.
type TabIndexer interface {
	IndexTab(ctx context.Context, tab *domain.Tab, collection *domain.Collection) error
	RemoveTab(ctx context.Context, tabID string) error
}

// NewCaptureService creates a capture service.
func NewCaptureService(
	st *store.Store,
	ctrl browser.Controller,
	binding *BindingService,
	remapper *Remapper,
	indexer TabIndexer,
	v *validation.Validator,
	log *logger.Logger,
) *CaptureService {
	return &CaptureService{
		store:     st,
		ctrl:      ctrl,
		binding:   binding,
		remapper:  remapper,
		indexer:   indexer,
		validator: v,
		logger:    log,
	}
}

// Capture snapshots a live window into a durable Collection with one Folder
// per non-empty tab-group plus a lazily created "Ungrouped" folder. Position
// is encounter order within each folder. Non-capturable tabs are skipped
// with one warning each; a window with nothing capturable is an error.
func (s *CaptureService) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.ctrl.GetWindow(ctx, req.WindowID); err != nil {
		return nil, mapBrowserErr(err, "get window")
	}

	liveTabs, err := s.ctrl.QueryTabs(ctx, &req.WindowID)
	if err != nil {
		return nil, mapBrowserErr(err, "query tabs")
	}
	liveGroups, err := s.ctrl.QueryGroups(ctx, req.WindowID)
	if err != nil {
		return nil, mapBrowserErr(err, "query groups")
	}

	groupsByID := make(map[int]browser.Group, len(liveGroups))
	for _, g := range liveGroups {
		groupsByID[g.ID] = g
	}

	// Walk tabs in window order so positions reflect what the user sees.
	sort.Slice(liveTabs, func(i, j int) bool { return liveTabs[i].Index < liveTabs[j].Index })

	var warnings []string
	capturable := make([]browser.Tab, 0, len(liveTabs))
	for _, t := range liveTabs {
		if !browser.Capturable(t.URL) {
			warnings = append(warnings, fmt.Sprintf("skipped non-capturable tab: %s", t.URL))
			continue
		}
		capturable = append(capturable, t)
	}
	if len(capturable) == 0 {
		return nil, errors.EmptyCapture("window has no capturable tabs")
	}

	now := time.Now()
	collection := &domain.Collection{
		ID:           id.MustGenerate(id.PrefixCollection),
		Name:         req.Name,
		Tags:         req.Tags,
		CreatedAt:    now,
		LastAccessed: now,
	}

	// Map live groups to folders in encounter order; the ungrouped folder
	// is created lazily only when a groupless tab shows up.
	var folders []*domain.Folder
	folderByGroup := make(map[int]*domain.Folder)
	var ungrouped *domain.Folder
	nextPos := make(map[string]int) // folder id -> next tab position

	var tabs []*domain.Tab
	liveIDs := make(map[string]int, len(capturable)) // durable tab id -> live id
	for _, t := range capturable {
		var folder *domain.Folder

		switch {
		case t.GroupID == browser.NoGroup:
			if ungrouped == nil {
				ungrouped = domain.NewUngroupedFolder(
					id.MustGenerate(id.PrefixFolder), collection.ID, len(folders))
				folders = append(folders, ungrouped)
			}
			folder = ungrouped
		default:
			f, ok := folderByGroup[t.GroupID]
			if !ok {
				g := groupsByID[t.GroupID]
				f = &domain.Folder{
					ID:           id.MustGenerate(id.PrefixFolder),
					CollectionID: collection.ID,
					Name:         g.Title,
					Color:        g.Color,
					Collapsed:    g.Collapsed,
					Position:     len(folders),
				}
				folderByGroup[t.GroupID] = f
				folders = append(folders, f)
			}
			folder = f
		}

		tab := &domain.Tab{
			ID:         id.MustGenerate(id.PrefixTab),
			FolderID:   folder.ID,
			URL:        t.URL,
			Title:      t.Title,
			FavIconURL: t.FavIconURL,
			Position:   nextPos[folder.ID],
			IsPinned:   t.Pinned,
		}
		liveIDs[tab.ID] = t.ID
		nextPos[folder.ID]++
		tabs = append(tabs, tab)
	}

	// Persist parent before children; there is no cross-entity transaction,
	// so a crash mid-way can orphan an empty collection.
	if err := s.store.Collections.Create(ctx, collection.ID, collection); err != nil {
		return nil, fmt.Errorf("persist collection: %w", err)
	}
	for _, f := range folders {
		if err := s.store.Folders.Create(ctx, f.ID, f); err != nil {
			return nil, fmt.Errorf("persist folder: %w", err)
		}
	}
	for _, t := range tabs {
		if err := s.store.Tabs.Create(ctx, t.ID, t); err != nil {
			return nil, fmt.Errorf("persist tab: %w", err)
		}
		if s.indexer != nil {
			if err := s.indexer.IndexTab(ctx, t, collection); err != nil {
				s.logger.Warn("search index update failed", "tab_id", t.ID, "error", err)
			}
		}
	}

	skipped := len(warnings)

	if req.KeepActive {
		// The window stays open, so record each tab's live counterpart and
		// bind the collection to the window.
		for _, t := range tabs {
			if err := s.remapper.SetTabLive(ctx, t.ID, liveIDs[t.ID]); err != nil {
				return nil, fmt.Errorf("record live id: %w", err)
			}
			t.SetLive(liveIDs[t.ID])
		}
		if err := s.binding.Bind(ctx, collection.ID, req.WindowID); err != nil {
			return nil, fmt.Errorf("bind captured collection: %w", err)
		}
		collection.Bind(req.WindowID)
	} else {
		// The snapshot replaces the live window: close every tab, capturable
		// or not, letting the emptied window close itself.
		ids := make([]int, len(liveTabs))
		for i, t := range liveTabs {
			ids[i] = t.ID
		}
		if err := s.ctrl.RemoveTabs(ctx, ids); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not close captured window: %v", err))
		}
	}

	s.logger.Info("window captured",
		"collection_id", collection.ID,
		"window_id", req.WindowID,
		"tabs", len(tabs),
		"folders", len(folders),
		"skipped", skipped,
		"keep_active", req.KeepActive,
	)

	return &CaptureResult{
		Collection: collection,
		Folders:    folders,
		Tabs:       tabs,
		Stats: CaptureStats{
			TabsCaptured:    len(tabs),
			TabsSkipped:     skipped,
			FoldersCaptured: len(folders),
		},
		Warnings: warnings,
	}, nil
}

// SuggestNameForWindow queries a live window's capturable tabs and proposes
// a collection name for them.
func (s *CaptureService) SuggestNameForWindow(ctx context.Context, windowID int) (string, error) {
	if _, err := s.ctrl.GetWindow(ctx, windowID); err != nil {
		return "", mapBrowserErr(err, "get window")
	}

	liveTabs, err := s.ctrl.QueryTabs(ctx, &windowID)
	if err != nil {
		return "", mapBrowserErr(err, "query tabs")
	}

	capturable := make([]browser.Tab, 0, len(liveTabs))
	for _, t := range liveTabs {
		if browser.Capturable(t.URL) {
			capturable = append(capturable, t)
		}
	}

	return SuggestName(capturable), nil
}

// SuggestName proposes a collection name from the window's tabs: the most
// frequent hostname, if it covers at least max(2, ceil(30%)) of them,
// otherwise a generic default. Pure function, no side effects.
func SuggestName(tabs []browser.Tab) string {
	counts := make(map[string]int)
	var total int
	for _, t := range tabs {
		host := hostname(t.URL)
		if host == "" {
			continue
		}
		counts[host]++
		total++
	}

	var best string
	var bestCount int
	for host, n := range counts {
		if n > bestCount || (n == bestCount && host < best) {
			best, bestCount = host, n
		}
	}

	threshold := int(math.Ceil(0.3 * float64(total)))
	if threshold < 2 {
		threshold = 2
	}
	if bestCount >= threshold {
		return best
	}
	return DefaultCollectionName
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
