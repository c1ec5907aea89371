package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Fake is an in-memory Controller for tests. Ids are allocated
// deterministically (windows from 100, tabs from 1000, groups from 500) so
// tests can assert on them. All methods are safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	nextWindowID int
	nextTabID    int
	nextGroupID  int

	windows map[int]*Window
	tabs    map[int]*Tab
	groups  map[int]*Group

	// focusOrder holds window ids, most recently focused last.
	focusOrder []int

	// CreateTabErr, when set, is consulted before every CreateTab call to
	// inject per-URL failures.
	CreateTabErr func(props CreateTabProps) error
}

// NewFake creates an empty fake browser.
func NewFake() *Fake {
	return &Fake{
		nextWindowID: 100,
		nextTabID:    1000,
		nextGroupID:  500,
		windows:      make(map[int]*Window),
		tabs:         make(map[int]*Tab),
		groups:       make(map[int]*Group),
	}
}

// AddWindow creates a window directly, bypassing the Controller interface.
// Returns the new window id.
func (f *Fake) AddWindow() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addWindowLocked(CreateWindowProps{Focused: true})
}

func (f *Fake) addWindowLocked(props CreateWindowProps) int {
	id := f.nextWindowID
	f.nextWindowID++

	w := &Window{ID: id, Width: 1280, Height: 800, State: "normal"}
	if props.Width != nil {
		w.Width = *props.Width
	}
	if props.Height != nil {
		w.Height = *props.Height
	}
	if props.Left != nil {
		w.Left = *props.Left
	}
	if props.Top != nil {
		w.Top = *props.Top
	}
	if props.State != "" {
		w.State = props.State
	}
	f.windows[id] = w
	if props.Focused {
		f.focusLocked(id)
	} else {
		f.focusOrder = append([]int{id}, f.focusOrder...)
	}
	return id
}

// AddTab creates a tab in a window directly. Returns the new tab id.
func (f *Fake) AddTab(windowID int, url, title string, pinned bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextTabID
	f.nextTabID++
	f.tabs[id] = &Tab{
		ID:       id,
		WindowID: windowID,
		GroupID:  NoGroup,
		Index:    f.countTabsLocked(windowID),
		URL:      url,
		Title:    title,
		Pinned:   pinned,
	}
	return id
}

// AddGroup creates a group in a window and assigns the given tabs to it.
func (f *Fake) AddGroup(windowID int, title, color string, tabIDs ...int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextGroupID
	f.nextGroupID++
	f.groups[id] = &Group{ID: id, WindowID: windowID, Title: title, Color: color}
	for _, tabID := range tabIDs {
		if t, ok := f.tabs[tabID]; ok {
			t.GroupID = id
		}
	}
	return id
}

// CloseWindow removes a window and its tabs out-of-band, simulating the user
// closing it while the server holds stale state.
func (f *Fake) CloseWindow(windowID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeWindowLocked(windowID)
}

func (f *Fake) removeWindowLocked(windowID int) {
	delete(f.windows, windowID)
	for id, t := range f.tabs {
		if t.WindowID == windowID {
			delete(f.tabs, id)
		}
	}
	for id, g := range f.groups {
		if g.WindowID == windowID {
			delete(f.groups, id)
		}
	}
	for i, id := range f.focusOrder {
		if id == windowID {
			f.focusOrder = append(f.focusOrder[:i], f.focusOrder[i+1:]...)
			break
		}
	}
}

// TabsInWindow returns the window's tabs ordered by index.
func (f *Fake) TabsInWindow(windowID int) []Tab {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabsInWindowLocked(windowID)
}

func (f *Fake) tabsInWindowLocked(windowID int) []Tab {
	var out []Tab
	for _, t := range f.tabs {
		if t.WindowID == windowID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// GroupCount returns how many live groups exist in a window.
func (f *Fake) GroupCount(windowID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, g := range f.groups {
		if g.WindowID == windowID {
			n++
		}
	}
	return n
}

// GroupByID returns a copy of a group, if it exists.
func (f *Fake) GroupByID(groupID int) (Group, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// WindowExists reports whether a window is still open.
func (f *Fake) WindowExists(windowID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.windows[windowID]
	return ok
}

func (f *Fake) focusLocked(windowID int) {
	for i, id := range f.focusOrder {
		if id == windowID {
			f.focusOrder = append(f.focusOrder[:i], f.focusOrder[i+1:]...)
			break
		}
	}
	f.focusOrder = append(f.focusOrder, windowID)
}

func (f *Fake) countTabsLocked(windowID int) int {
	n := 0
	for _, t := range f.tabs {
		if t.WindowID == windowID {
			n++
		}
	}
	return n
}

// Controller implementation.

// QueryTabs implements Controller.
func (f *Fake) QueryTabs(_ context.Context, windowID *int) ([]Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if windowID == nil {
		var out []Tab
		for _, t := range f.tabs {
			out = append(out, *t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	}

	if _, ok := f.windows[*windowID]; !ok {
		return nil, ErrNotFound
	}
	return f.tabsInWindowLocked(*windowID), nil
}

// QueryGroups implements Controller.
func (f *Fake) QueryGroups(_ context.Context, windowID int) ([]Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.windows[windowID]; !ok {
		return nil, ErrNotFound
	}
	var out []Group
	for _, g := range f.groups {
		if g.WindowID == windowID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateWindow implements Controller. Like a real browser, the new window is
// seeded with one default tab.
func (f *Fake) CreateWindow(_ context.Context, props CreateWindowProps) (*Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.addWindowLocked(props)

	seedURL := props.URL
	if seedURL == "" {
		seedURL = "chrome://newtab/"
	}
	tabID := f.nextTabID
	f.nextTabID++
	f.tabs[tabID] = &Tab{ID: tabID, WindowID: id, GroupID: NoGroup, URL: seedURL, Active: true}

	w := *f.windows[id]
	return &w, nil
}

// CreateTab implements Controller.
func (f *Fake) CreateTab(_ context.Context, props CreateTabProps) (*Tab, error) {
	if f.CreateTabErr != nil {
		if err := f.CreateTabErr(props); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var windowID int
	switch {
	case props.WindowID != nil:
		if _, ok := f.windows[*props.WindowID]; !ok {
			return nil, ErrNotFound
		}
		windowID = *props.WindowID
	case len(f.focusOrder) > 0:
		windowID = f.focusOrder[len(f.focusOrder)-1]
	default:
		windowID = f.addWindowLocked(CreateWindowProps{Focused: true})
	}

	id := f.nextTabID
	f.nextTabID++

	index := f.countTabsLocked(windowID)
	if props.Index != nil {
		index = *props.Index
	}

	t := &Tab{
		ID:       id,
		WindowID: windowID,
		GroupID:  NoGroup,
		Index:    index,
		URL:      props.URL,
		Pinned:   props.Pinned,
		Active:   props.Active,
	}
	f.tabs[id] = t

	out := *t
	return &out, nil
}

// RemoveTabs implements Controller. Missing ids are ignored; a window whose
// last tab is removed closes itself, like a real browser.
func (f *Fake) RemoveTabs(_ context.Context, tabIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	touched := make(map[int]bool)
	for _, id := range tabIDs {
		if t, ok := f.tabs[id]; ok {
			touched[t.WindowID] = true
			delete(f.tabs, id)
		}
	}
	for windowID := range touched {
		if f.countTabsLocked(windowID) == 0 {
			f.removeWindowLocked(windowID)
		}
	}
	return nil
}

// MoveTab implements Controller.
func (f *Fake) MoveTab(_ context.Context, tabID, windowID, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tabs[tabID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := f.windows[windowID]; !ok {
		return ErrNotFound
	}
	t.WindowID = windowID
	t.Index = index
	return nil
}

// GroupTabs implements Controller.
func (f *Fake) GroupTabs(_ context.Context, props GroupProps) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(props.TabIDs) == 0 {
		return 0, fmt.Errorf("no tabs to group")
	}

	var groupID int
	if props.GroupID != nil {
		if _, ok := f.groups[*props.GroupID]; !ok {
			return 0, ErrNotFound
		}
		groupID = *props.GroupID
	} else {
		first, ok := f.tabs[props.TabIDs[0]]
		if !ok {
			return 0, ErrNotFound
		}
		groupID = f.nextGroupID
		f.nextGroupID++
		f.groups[groupID] = &Group{ID: groupID, WindowID: first.WindowID, Color: "grey"}
	}

	for _, tabID := range props.TabIDs {
		t, ok := f.tabs[tabID]
		if !ok {
			return 0, ErrNotFound
		}
		t.GroupID = groupID
	}
	return groupID, nil
}

// UpdateGroup implements Controller.
func (f *Fake) UpdateGroup(_ context.Context, groupID int, props UpdateGroupProps) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	if props.Title != nil {
		g.Title = *props.Title
	}
	if props.Color != nil {
		g.Color = *props.Color
	}
	if props.Collapsed != nil {
		g.Collapsed = *props.Collapsed
	}
	return nil
}

// UpdateWindow implements Controller.
func (f *Fake) UpdateWindow(_ context.Context, windowID int, props UpdateWindowProps) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[windowID]
	if !ok {
		return ErrNotFound
	}
	if props.Focused != nil && *props.Focused {
		f.focusLocked(windowID)
		w.Focused = true
	}
	if props.Left != nil {
		w.Left = *props.Left
	}
	if props.Top != nil {
		w.Top = *props.Top
	}
	if props.Width != nil {
		w.Width = *props.Width
	}
	if props.Height != nil {
		w.Height = *props.Height
	}
	if props.State != "" {
		w.State = props.State
	}
	return nil
}

// GetWindow implements Controller.
func (f *Fake) GetWindow(_ context.Context, windowID int) (*Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[windowID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *w
	return &out, nil
}

// LastFocusedWindow implements Controller.
func (f *Fake) LastFocusedWindow(_ context.Context) (*Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.focusOrder) == 0 {
		return nil, ErrNotFound
	}
	w := *f.windows[f.focusOrder[len(f.focusOrder)-1]]
	return &w, nil
}

var _ Controller = (*Fake)(nil)
