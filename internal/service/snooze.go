package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/id"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/store"
	"github.com/tabvault/tabvault-server/internal/timer"
)

// sweepTimerName is the shared recurring fallback timer for the scheduler.
const sweepTimerName = "snooze:sweep"

// SnoozeRequest defers live tabs until a wake time.
type SnoozeRequest struct {
	TabIDs []int                  `json:"tab_ids"`
	WakeAt time.Time              `json:"wake_at"`
	Mode   domain.RestorationMode `json:"mode"`

	// windowSnoozeID tags items snoozed together as a whole window.
	// Set internally by SnoozeWindow, never by callers.
	windowSnoozeID string
}

// SnoozeResult reports the created items and per-skip warnings.
type SnoozeResult struct {
	Items    []*domain.SnoozedItem `json:"items"`
	Warnings []string              `json:"warnings,omitempty"`
}

// WakeRequest reopens snoozed items ahead of (or at) their wake time.
type WakeRequest struct {
	ItemIDs        []string `json:"item_ids"`
	TargetWindowID *int     `json:"target_window_id,omitempty"`
	MakeActive     bool     `json:"make_active"`
}

// WakeResult reports the new live tab ids.
type WakeResult struct {
	LiveTabIDs []int    `json:"live_tab_ids"`
	Warnings   []string `json:"warnings,omitempty"`
}

// SnoozeWindowResult reports a whole-window snooze.
type SnoozeWindowResult struct {
	WindowSnoozeID string                `json:"window_snooze_id"`
	Items          []*domain.SnoozedItem `json:"items"`
	Warnings       []string              `json:"warnings,omitempty"`
}

// RestoreWindowResult reports a window wake.
type RestoreWindowResult struct {
	WindowID     int      `json:"window_id"`
	TabsRestored int      `json:"tabs_restored"`
	Warnings     []string `json:"warnings,omitempty"`
}

// SnoozeService owns the snooze/wake state machine. Each unresolved item has
// exactly one armed one-shot timer named after its durable id, plus one
// shared periodic sweep that wakes overdue items whose timers were lost to a
// restart. Timers live in memory only; the durable item list is the source
// of truth and the service rehydrates lazily on first use.
//
// Concurrent calls against the same item persist last-writer-wins with no
// version check; a racing update can be silently dropped.
type SnoozeService struct {
	store   *store.Store
	ctrl    browser.Controller
	timers  *timer.Service
	restore *RestoreService
	logger  *logger.Logger

	sweepInterval time.Duration

	mu     sync.Mutex
	inited bool
}

// NewSnoozeService creates a snooze service. Timers are not armed until the
// first call; see ensureInit.
func NewSnoozeService(
	st *store.Store,
	ctrl browser.Controller,
	timers *timer.Service,
	restore *RestoreService,
	log *logger.Logger,
	sweepInterval time.Duration,
) *SnoozeService {
	return &SnoozeService{
		store:         st,
		ctrl:          ctrl,
		timers:        timers,
		restore:       restore,
		logger:        log,
		sweepInterval: sweepInterval,
	}
}

// ensureInit rehydrates after a cold start: re-arms a one-shot timer for
// every stored item and starts the periodic sweep. Runs once per process,
// before any other request is answered.
func (s *SnoozeService) ensureInit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inited {
		return nil
	}

	rearmed := 0
	for item, err := range s.store.SnoozedItems.List(ctx) {
		if err != nil {
			return fmt.Errorf("rehydrate snoozed items: %w", err)
		}
		s.armWake(item)
		rearmed++
	}

	s.timers.ArmPeriodic(sweepTimerName, s.sweepInterval, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.logger.Warn("snooze sweep failed", "error", err)
		}
	})

	s.inited = true
	if rearmed > 0 {
		s.logger.Info("snooze timers rehydrated", "items", rearmed)
	}
	return nil
}

// armWake arms the item's uniquely named one-shot timer. A past wakeAt fires
// immediately.
func (s *SnoozeService) armWake(item *domain.SnoozedItem) {
	itemID := item.ID
	s.timers.Arm(item.TimerName(), item.WakeAt, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.Wake(ctx, WakeRequest{ItemIDs: []string{itemID}, MakeActive: false}); err != nil {
			// The sweep retries overdue items, so a failed delivery is not
			// terminal.
			s.logger.Warn("timer wake failed", "item_id", itemID, "error", err)
		}
	})
}

// Snooze captures minimal metadata for each live tab, persists a
// SnoozedItem, arms its timer, and finally closes all resolved tabs in one
// bulk call. A tab id that no longer resolves is skipped with a warning,
// never fatal to the rest of the batch.
func (s *SnoozeService) Snooze(ctx context.Context, req SnoozeRequest) (*SnoozeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}
	if len(req.TabIDs) == 0 {
		return nil, errors.Validation("tab_ids must not be empty")
	}
	if req.WakeAt.IsZero() {
		return nil, errors.Validation("wake_at is required")
	}

	liveTabs, err := s.ctrl.QueryTabs(ctx, nil)
	if err != nil {
		return nil, mapBrowserErr(err, "query tabs")
	}
	byID := make(map[int]browser.Tab, len(liveTabs))
	for _, t := range liveTabs {
		byID[t.ID] = t
	}

	result := &SnoozeResult{}
	var toClose []int
	for _, tabID := range req.TabIDs {
		live, ok := byID[tabID]
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tab %d already closed, skipped", tabID))
			continue
		}

		item := &domain.SnoozedItem{
			ID:             id.MustGenerate(id.PrefixSnoozedItem),
			URL:            live.URL,
			Title:          live.Title,
			FavIconURL:     live.FavIconURL,
			WakeAt:         req.WakeAt,
			SourceWindowID: live.WindowID,
			WindowSnoozeID: req.windowSnoozeID,
			Mode:           req.Mode,
			CreatedAt:      time.Now(),
		}
		if live.GroupID != browser.NoGroup {
			groupID := live.GroupID
			item.OriginalGroupID = &groupID
		}

		if err := s.store.SnoozedItems.Create(ctx, item.ID, item); err != nil {
			return nil, fmt.Errorf("persist snoozed item: %w", err)
		}
		s.armWake(item)

		result.Items = append(result.Items, item)
		toClose = append(toClose, tabID)
	}

	if len(toClose) > 0 {
		if err := s.ctrl.RemoveTabs(ctx, toClose); err != nil {
			return nil, mapBrowserErr(err, "close snoozed tabs")
		}
	}

	s.logger.Info("tabs snoozed",
		"items", len(result.Items),
		"skipped", len(result.Warnings),
		"wake_at", req.WakeAt,
	)
	return result, nil
}

// Wake reopens the given items in order. An explicit target window overrides
// the per-item restoration mode; otherwise the mode picks the destination,
// falling back to the last-focused window when a source window is gone.
// Re-adding a tab to its original group is best-effort and silent. Only the
// first item is made active when MakeActive is set. Woken items are removed
// from the durable list and their timers cancelled.
func (s *SnoozeService) Wake(ctx context.Context, req WakeRequest) (*WakeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}
	if len(req.ItemIDs) == 0 {
		return nil, errors.Validation("item_ids must not be empty")
	}

	result := &WakeResult{}
	for i, itemID := range req.ItemIDs {
		item, err := s.store.SnoozedItems.Get(ctx, itemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("item %s not found, skipped", itemID))
				continue
			}
			return nil, fmt.Errorf("get snoozed item: %w", err)
		}

		destination, warn := s.resolveDestination(ctx, item, req.TargetWindowID)
		if warn != "" {
			result.Warnings = append(result.Warnings, warn)
		}

		live, err := s.ctrl.CreateTab(ctx, browser.CreateTabProps{
			WindowID: destination,
			URL:      item.URL,
			Active:   req.MakeActive && i == 0,
		})
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("wake %s: %v", item.URL, err))
			continue
		}

		s.regroupBestEffort(ctx, item, live.ID)

		s.timers.Cancel(item.TimerName())
		if err := s.store.SnoozedItems.Delete(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("remove woken item: %w", err)
		}

		result.LiveTabIDs = append(result.LiveTabIDs, live.ID)
	}

	s.logger.Info("items woken", "woken", len(result.LiveTabIDs), "warnings", len(result.Warnings))
	return result, nil
}

// resolveDestination picks the window a waking item reopens into. Returns a
// nil window id for mode "new" so the browser allocates a fresh window. The
// warning, if any, notes a fallback that was taken.
func (s *SnoozeService) resolveDestination(ctx context.Context, item *domain.SnoozedItem, target *int) (*int, string) {
	if target != nil {
		return target, ""
	}

	switch item.Mode {
	case domain.RestoreOriginal:
		if _, err := s.ctrl.GetWindow(ctx, item.SourceWindowID); err == nil {
			windowID := item.SourceWindowID
			return &windowID, ""
		}
		if w, err := s.ctrl.LastFocusedWindow(ctx); err == nil {
			return &w.ID, fmt.Sprintf("source window %d gone, using last-focused", item.SourceWindowID)
		}
		return nil, fmt.Sprintf("source window %d gone and no window focused, opening new", item.SourceWindowID)
	case domain.RestoreCurrent:
		if w, err := s.ctrl.LastFocusedWindow(ctx); err == nil {
			return &w.ID, ""
		}
		return nil, "no window focused, opening new"
	case domain.RestoreNew:
		return nil, ""
	default:
		return nil, ""
	}
}

// regroupBestEffort re-adds a woken tab to its original group if that group
// still exists. Failure here is deliberate silence: the tab is already open,
// which is what the user asked for.
func (s *SnoozeService) regroupBestEffort(ctx context.Context, item *domain.SnoozedItem, liveTabID int) {
	if item.OriginalGroupID == nil {
		return
	}

	groups, err := s.ctrl.QueryGroups(ctx, item.SourceWindowID)
	if err != nil {
		return
	}
	for _, g := range groups {
		if g.ID == *item.OriginalGroupID {
			groupID := g.ID
			_, _ = s.ctrl.GroupTabs(ctx, browser.GroupProps{TabIDs: []int{liveTabID}, GroupID: &groupID})
			return
		}
	}
}

// Reschedule moves an item's wake time and re-arms its timer. No other field
// changes.
func (s *SnoozeService) Reschedule(ctx context.Context, itemID string, wakeAt time.Time) (*domain.SnoozedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}
	if wakeAt.IsZero() {
		return nil, errors.Validation("wake_at is required")
	}

	item, err := s.store.SnoozedItems.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("snoozed item %s not found", itemID)
		}
		return nil, fmt.Errorf("get snoozed item: %w", err)
	}

	item.WakeAt = wakeAt
	if err := s.store.SnoozedItems.Update(ctx, itemID, item); err != nil {
		return nil, fmt.Errorf("persist reschedule: %w", err)
	}
	s.armWake(item)

	s.logger.Info("item rescheduled", "item_id", itemID, "wake_at", wakeAt)
	return item, nil
}

// Delete removes an item without waking it and disarms its timer.
func (s *SnoozeService) Delete(ctx context.Context, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	if _, err := s.store.SnoozedItems.Get(ctx, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("snoozed item %s not found", itemID)
		}
		return fmt.Errorf("get snoozed item: %w", err)
	}

	s.timers.Cancel(domain.SnoozeTimerName(itemID))
	if err := s.store.SnoozedItems.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("delete snoozed item: %w", err)
	}

	s.logger.Info("item deleted unwoken", "item_id", itemID)
	return nil
}

// List returns every unresolved snoozed item, soonest wake first.
func (s *SnoozeService) List(ctx context.Context) ([]*domain.SnoozedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}

	var items []*domain.SnoozedItem
	for item, err := range s.store.SnoozedItems.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list snoozed items: %w", err)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].WakeAt.Before(items[j].WakeAt) })
	return items, nil
}

// SnoozeWindow snoozes every tab of a window together: one shared wake time,
// one generated window-snooze id, WindowMetadata captured before anything
// closes. The window auto-closing once its last tab is removed is expected.
func (s *SnoozeService) SnoozeWindow(ctx context.Context, windowID int, duration time.Duration, mode domain.RestorationMode) (*SnoozeWindowResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, errors.Validation("duration must be positive")
	}

	window, err := s.ctrl.GetWindow(ctx, windowID)
	if err != nil {
		return nil, mapBrowserErr(err, "get window")
	}

	tabs, err := s.ctrl.QueryTabs(ctx, &windowID)
	if err != nil {
		return nil, mapBrowserErr(err, "query tabs")
	}

	var warnings []string
	var tabIDs []int
	for _, t := range tabs {
		if !browser.Capturable(t.URL) {
			warnings = append(warnings, fmt.Sprintf("skipped non-capturable tab: %s", t.URL))
			continue
		}
		tabIDs = append(tabIDs, t.ID)
	}
	if len(tabIDs) == 0 {
		return nil, errors.EmptyCapture("window has no snoozable tabs")
	}

	snoozeID := uuid.NewString()

	// Metadata goes in first so a crash after the tabs close still leaves
	// enough to restore the window's geometry.
	meta := &domain.WindowMetadata{
		SnoozeID:  snoozeID,
		Left:      window.Left,
		Top:       window.Top,
		Width:     window.Width,
		Height:    window.Height,
		State:     window.State,
		CreatedAt: time.Now(),
	}
	if err := s.store.WindowMetadata.Create(ctx, snoozeID, meta); err != nil {
		return nil, fmt.Errorf("persist window metadata: %w", err)
	}

	snoozed, err := s.Snooze(ctx, SnoozeRequest{
		TabIDs:         tabIDs,
		WakeAt:         time.Now().Add(duration),
		Mode:           mode,
		windowSnoozeID: snoozeID,
	})
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, snoozed.Warnings...)

	// Closing its tabs usually closes the window; clean up stragglers
	// (non-capturable tabs) if it survived.
	if leftover, err := s.ctrl.QueryTabs(ctx, &windowID); err == nil && len(leftover) > 0 {
		ids := make([]int, len(leftover))
		for i, t := range leftover {
			ids[i] = t.ID
		}
		if err := s.ctrl.RemoveTabs(ctx, ids); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not close window %d: %v", windowID, err))
		}
	}

	s.logger.Info("window snoozed",
		"window_id", windowID,
		"window_snooze_id", snoozeID,
		"items", len(snoozed.Items),
		"wake_at", time.Now().Add(duration),
	)

	return &SnoozeWindowResult{
		WindowSnoozeID: snoozeID,
		Items:          snoozed.Items,
		Warnings:       warnings,
	}, nil
}

// RestoreWindow reopens every item sharing a window-snooze id into a fresh
// window through the shared batched-creation path. Lost metadata degrades to
// default geometry rather than failing. WindowMetadata and the consumed
// items are deleted only after recreation; partial success still cleans up
// the items that were actually consumed.
func (s *SnoozeService) RestoreWindow(ctx context.Context, windowSnoozeID string) (*RestoreWindowResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}

	var items []*domain.SnoozedItem
	for item, err := range s.store.SnoozedItems.ListByIndex(ctx, "windowSnooze", windowSnoozeID) {
		if err != nil {
			return nil, fmt.Errorf("list window snooze items: %w", err)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		// Nothing left to restore; drop any leftover metadata.
		if err := s.store.WindowMetadata.Delete(ctx, windowSnoozeID); err != nil {
			s.logger.Warn("orphan metadata cleanup failed", "window_snooze_id", windowSnoozeID, "error", err)
		}
		return nil, errors.NotFoundf("window snooze %s not found", windowSnoozeID)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })

	meta, err := s.store.WindowMetadata.Get(ctx, windowSnoozeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get window metadata: %w", err)
		}
		meta = domain.DefaultWindowMetadata(windowSnoozeID)
	}

	var warnings []string
	window, err := s.ctrl.CreateWindow(ctx, browser.CreateWindowProps{
		Focused: true,
		Left:    &meta.Left,
		Top:     &meta.Top,
		Width:   &meta.Width,
		Height:  &meta.Height,
		State:   meta.State,
	})
	if err != nil {
		return nil, mapBrowserErr(err, "create window")
	}

	// The default tab keeps the new window alive until restored tabs exist;
	// it is removed only after the batches run.
	var seedTabs []int
	if defaults, err := s.ctrl.QueryTabs(ctx, &window.ID); err == nil {
		for _, t := range defaults {
			seedTabs = append(seedTabs, t.ID)
		}
	}

	specs := make([]TabSpec, len(items))
	for i, item := range items {
		specs[i] = TabSpec{
			Props: browser.CreateTabProps{
				WindowID: &window.ID,
				URL:      item.URL,
				Active:   i == 0,
			},
			Label: item.URL,
		}
	}

	created, batchWarnings := s.restore.CreateTabsBatched(ctx, paceKey(window.ID), specs)
	warnings = append(warnings, batchWarnings...)
	warnings = append(warnings, closeSeedTabs(ctx, s.ctrl, seedTabs, created)...)

	// Cleanup happens only now, after recreation: every consumed item goes,
	// failed ones stay snoozed for the sweep to retry.
	restored := 0
	for i, item := range items {
		if created[i] == nil {
			continue
		}
		restored++
		s.timers.Cancel(item.TimerName())
		if err := s.store.SnoozedItems.Delete(ctx, item.ID); err != nil {
			warnings = append(warnings, fmt.Sprintf("cleanup %s: %v", item.ID, err))
		}
	}
	if err := s.store.WindowMetadata.Delete(ctx, windowSnoozeID); err != nil {
		warnings = append(warnings, fmt.Sprintf("cleanup metadata: %v", err))
	}

	s.logger.Info("window restored",
		"window_snooze_id", windowSnoozeID,
		"window_id", window.ID,
		"tabs_restored", restored,
		"warnings", len(warnings),
	)

	return &RestoreWindowResult{
		WindowID:     window.ID,
		TabsRestored: restored,
		Warnings:     warnings,
	}, nil
}

// Sweep is the recovery path for lost timers: it wakes every overdue item
// and purges WindowMetadata whose items are all gone. Runs on the shared
// periodic timer and can be invoked directly.
func (s *SnoozeService) Sweep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	now := time.Now()
	var overdue []string
	liveSnoozes := make(map[string]bool)
	for item, err := range s.store.SnoozedItems.List(ctx) {
		if err != nil {
			return fmt.Errorf("list snoozed items: %w", err)
		}
		if item.WindowSnoozeID != "" {
			liveSnoozes[item.WindowSnoozeID] = true
		}
		if item.Due(now) {
			overdue = append(overdue, item.ID)
		}
	}

	if len(overdue) > 0 {
		s.logger.Info("sweep waking overdue items", "count", len(overdue))
		if _, err := s.Wake(ctx, WakeRequest{ItemIDs: overdue, MakeActive: false}); err != nil {
			return fmt.Errorf("sweep wake: %w", err)
		}
	}

	// Orphaned-metadata cleanup: metadata whose snooze has no items left.
	for meta, err := range s.store.WindowMetadata.List(ctx) {
		if err != nil {
			return fmt.Errorf("list window metadata: %w", err)
		}
		if liveSnoozes[meta.SnoozeID] {
			continue
		}
		if err := s.store.WindowMetadata.Delete(ctx, meta.SnoozeID); err != nil {
			s.logger.Warn("orphan metadata cleanup failed", "window_snooze_id", meta.SnoozeID, "error", err)
			continue
		}
		s.logger.Debug("purged orphaned window metadata", "window_snooze_id", meta.SnoozeID)
	}

	return nil
}
