package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/service"
)

func TestCapture_GroupedWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winID := env.fake.AddWindow()
	a := env.fake.AddTab(winID, "https://news.test/one", "One", false)
	b := env.fake.AddTab(winID, "https://news.test/two", "Two", false)
	env.fake.AddTab(winID, "https://docs.test/readme", "Readme", true)
	env.fake.AddGroup(winID, "News", "blue", a, b)

	res, err := env.capture.Capture(ctx, service.CaptureRequest{
		WindowID: winID,
		Name:     "Morning",
		Tags:     []string{"daily"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.TabsCaptured)
	assert.Equal(t, 0, res.Stats.TabsSkipped)
	assert.Equal(t, 2, res.Stats.FoldersCaptured)
	assert.Empty(t, res.Warnings)

	// One folder from the group, one synthesized for the loose tab.
	var grouped, ungrouped *domain.Folder
	for _, f := range res.Folders {
		if f.IsUngrouped {
			ungrouped = f
		} else {
			grouped = f
		}
	}
	require.NotNil(t, grouped)
	require.NotNil(t, ungrouped)
	assert.Equal(t, "News", grouped.Name)
	assert.Equal(t, "blue", grouped.Color)
	assert.Equal(t, domain.UngroupedFolderName, ungrouped.Name)

	// Encounter-order positions within each folder, starting at 0.
	positions := map[string][]int{}
	for _, tab := range res.Tabs {
		positions[tab.FolderID] = append(positions[tab.FolderID], tab.Position)
	}
	assert.Equal(t, []int{0, 1}, positions[grouped.ID])
	assert.Equal(t, []int{0}, positions[ungrouped.ID])

	// Pinned state survives.
	for _, tab := range res.Tabs {
		if tab.FolderID == ungrouped.ID {
			assert.True(t, tab.IsPinned)
		}
	}

	// Without keepActive, fully durable: no live ids, not bound, and the
	// source window is closed.
	for _, tab := range res.Tabs {
		assert.False(t, tab.HasLive())
	}
	assert.False(t, res.Collection.IsBound())
	assert.False(t, env.fake.WindowExists(winID))
}

func TestCapture_SkipsNonCapturable(t *testing.T) {
	env := newTestEnv(t)

	winID := env.fake.AddWindow()
	env.fake.AddTab(winID, "https://a.test", "A", false)
	env.fake.AddTab(winID, "https://b.test", "B", false)
	env.fake.AddTab(winID, "https://c.test", "C", false)
	env.fake.AddTab(winID, "chrome://settings", "Settings", false)
	env.fake.AddTab(winID, "about:blank", "Blank", false)

	res, err := env.capture.Capture(context.Background(), service.CaptureRequest{
		WindowID: winID,
		Name:     "Mixed",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.TabsCaptured)
	assert.Equal(t, 2, res.Stats.TabsSkipped)
	assert.GreaterOrEqual(t, res.Stats.FoldersCaptured, 1)
	assert.Len(t, res.Warnings, 2)

	// Skipped tabs are still closed along with the rest of the window.
	assert.False(t, env.fake.WindowExists(winID))
}

func TestCapture_EmptyWindow(t *testing.T) {
	env := newTestEnv(t)

	winID := env.fake.AddWindow()
	env.fake.AddTab(winID, "chrome://newtab/", "New Tab", false)

	_, err := env.capture.Capture(context.Background(), service.CaptureRequest{
		WindowID: winID,
		Name:     "Empty",
	})
	assert.ErrorIs(t, err, errors.ErrEmptyCapture)
}

func TestCapture_Validation(t *testing.T) {
	env := newTestEnv(t)

	winID := env.fake.AddWindow()
	env.fake.AddTab(winID, "https://a.test", "A", false)

	_, err := env.capture.Capture(context.Background(), service.CaptureRequest{WindowID: winID})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCapture_WindowNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.capture.Capture(context.Background(), service.CaptureRequest{
		WindowID: 12345,
		Name:     "Ghost",
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCapture_KeepActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winID := env.fake.AddWindow()
	liveA := env.fake.AddTab(winID, "https://a.test", "A", false)
	liveB := env.fake.AddTab(winID, "https://b.test", "B", false)

	res, err := env.capture.Capture(ctx, service.CaptureRequest{
		WindowID:   winID,
		Name:       "Active",
		KeepActive: true,
	})
	require.NoError(t, err)

	// The window survives and the returned collection reflects the binding.
	assert.True(t, env.fake.WindowExists(winID))
	require.True(t, res.Collection.IsBound())
	require.NotNil(t, res.Collection.WindowID)
	assert.Equal(t, winID, *res.Collection.WindowID)

	// Collection bound to the window.
	bound, err := env.binding.GetForWindow(ctx, winID)
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, res.Collection.ID, bound.ID)

	// Each durable tab carries its live counterpart's id, persisted.
	liveIDs := map[int]bool{}
	for _, tab := range res.Tabs {
		stored, err := env.store.Tabs.Get(ctx, tab.ID)
		require.NoError(t, err)
		require.True(t, stored.HasLive())
		liveIDs[*stored.LiveID] = true
	}
	assert.True(t, liveIDs[liveA])
	assert.True(t, liveIDs[liveB])
}

func TestSuggestName(t *testing.T) {
	mk := func(urls ...string) []browser.Tab {
		tabs := make([]browser.Tab, len(urls))
		for i, u := range urls {
			tabs[i] = browser.Tab{ID: i, URL: u}
		}
		return tabs
	}

	tests := []struct {
		name string
		tabs []browser.Tab
		want string
	}{
		{
			name: "dominant hostname",
			tabs: mk("https://github.com/a", "https://github.com/b", "https://github.com/c", "https://other.test"),
			want: "github.com",
		},
		{
			name: "www stripped",
			tabs: mk("https://www.wiki.test/x", "https://wiki.test/y"),
			want: "wiki.test",
		},
		{
			name: "no majority",
			tabs: mk("https://a.test", "https://b.test", "https://c.test", "https://d.test", "https://e.test", "https://f.test", "https://g.test"),
			want: service.DefaultCollectionName,
		},
		{
			name: "single tab below absolute threshold",
			tabs: mk("https://solo.test"),
			want: service.DefaultCollectionName,
		},
		{
			name: "empty",
			tabs: nil,
			want: service.DefaultCollectionName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.SuggestName(tt.tabs))
		})
	}
}
