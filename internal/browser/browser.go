// Package browser defines the control surface for the live browser and its
// implementations. The server never talks to the browser directly; it issues
// commands to the companion extension over a WebSocket bridge, and tests use
// the in-memory Fake.
//
// Everything in this package deals in ephemeral ids: identifiers the browser
// assigned to live windows, tabs and groups, valid only while those resources
// exist.
package browser

import (
	"context"
	"errors"
)

// NoGroup is the group id of a tab that belongs to no tab-group.
const NoGroup = -1

// ErrNoBrowser is returned when no extension is connected to the bridge.
var ErrNoBrowser = errors.New("no browser connected")

// ErrNotFound is returned when a window, tab, or group does not exist.
var ErrNotFound = errors.New("browser resource not found")

// Tab is a live browser tab.
type Tab struct {
	ID         int    `json:"id"`
	WindowID   int    `json:"window_id"`
	GroupID    int    `json:"group_id"` // NoGroup when ungrouped
	Index      int    `json:"index"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	FavIconURL string `json:"favicon_url,omitempty"`
	Pinned     bool   `json:"pinned"`
	Active     bool   `json:"active"`
}

// Group is a live tab-group.
type Group struct {
	ID        int    `json:"id"`
	WindowID  int    `json:"window_id"`
	Title     string `json:"title"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

// Window is a live browser window.
type Window struct {
	ID      int    `json:"id"`
	Focused bool   `json:"focused"`
	Left    int    `json:"left"`
	Top     int    `json:"top"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	State   string `json:"state,omitempty"`
}

// CreateWindowProps are the properties for a new window.
type CreateWindowProps struct {
	URL     string `json:"url,omitempty"`
	Focused bool   `json:"focused"`
	Left    *int   `json:"left,omitempty"`
	Top     *int   `json:"top,omitempty"`
	Width   *int   `json:"width,omitempty"`
	Height  *int   `json:"height,omitempty"`
	State   string `json:"state,omitempty"`
}

// CreateTabProps are the properties for a new tab. A nil WindowID lets the
// browser pick (or create) the destination window.
type CreateTabProps struct {
	WindowID *int   `json:"window_id,omitempty"`
	URL      string `json:"url"`
	Index    *int   `json:"index,omitempty"`
	Pinned   bool   `json:"pinned"`
	Active   bool   `json:"active"`
}

// GroupProps identifies the tabs to group together. A nil GroupID creates a
// new group; otherwise the tabs join the existing one.
type GroupProps struct {
	TabIDs  []int `json:"tab_ids"`
	GroupID *int  `json:"group_id,omitempty"`
}

// UpdateGroupProps are the mutable properties of a live group.
type UpdateGroupProps struct {
	Title     *string `json:"title,omitempty"`
	Color     *string `json:"color,omitempty"`
	Collapsed *bool   `json:"collapsed,omitempty"`
}

// UpdateWindowProps are the mutable properties of a live window.
type UpdateWindowProps struct {
	Focused *bool  `json:"focused,omitempty"`
	Left    *int   `json:"left,omitempty"`
	Top     *int   `json:"top,omitempty"`
	Width   *int   `json:"width,omitempty"`
	Height  *int   `json:"height,omitempty"`
	State   string `json:"state,omitempty"`
}

// Controller is the abstract browser control surface. The extension side has
// an implicit rate limit on bulk operations, which is why restoration batches
// its calls.
type Controller interface {
	// QueryTabs returns all tabs, or the tabs of one window when windowID is
	// non-nil. Returns ErrNotFound for a window that does not exist.
	QueryTabs(ctx context.Context, windowID *int) ([]Tab, error)

	// QueryGroups returns the tab-groups of a window.
	QueryGroups(ctx context.Context, windowID int) ([]Group, error)

	// CreateWindow opens a new window. The browser seeds it with a default
	// tab unless a URL is given.
	CreateWindow(ctx context.Context, props CreateWindowProps) (*Window, error)

	// CreateTab opens a new tab.
	CreateTab(ctx context.Context, props CreateTabProps) (*Tab, error)

	// RemoveTabs closes the given tabs in one bulk call. Ids that no longer
	// exist are ignored.
	RemoveTabs(ctx context.Context, tabIDs []int) error

	// MoveTab moves a tab to the given window and index.
	MoveTab(ctx context.Context, tabID, windowID, index int) error

	// GroupTabs adds tabs to a group per props, returning the group id.
	GroupTabs(ctx context.Context, props GroupProps) (int, error)

	// UpdateGroup changes a live group's properties.
	UpdateGroup(ctx context.Context, groupID int, props UpdateGroupProps) error

	// UpdateWindow changes a live window's properties.
	UpdateWindow(ctx context.Context, windowID int, props UpdateWindowProps) error

	// GetWindow returns a window by id, or ErrNotFound.
	GetWindow(ctx context.Context, windowID int) (*Window, error)

	// LastFocusedWindow returns the most recently focused window, or
	// ErrNotFound when no window is open.
	LastFocusedWindow(ctx context.Context) (*Window, error)
}
