package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/service"
	storepkg "github.com/tabvault/tabvault-server/internal/store"
)

func captureGroupedWindow(t *testing.T, env *testEnv, name string) *service.CaptureResult {
	t.Helper()
	ctx := context.Background()

	winID := env.fake.AddWindow()
	env.fake.AddTab(winID, "https://a.test", "A", false)
	b := env.fake.AddTab(winID, "https://b.test", "B", false)
	c := env.fake.AddTab(winID, "https://c.test", "C", false)
	env.fake.AddGroup(winID, "Docs", "blue", b, c)

	result, err := env.capture.Capture(ctx, service.CaptureRequest{
		WindowID: winID,
		Name:     name,
	})
	require.NoError(t, err)
	return result
}

func TestCollections_ListSummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := captureGroupedWindow(t, env, "First")
	second := captureGroupedWindow(t, env, "Second")

	summaries, err := env.collections.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Most recently captured first.
	assert.Equal(t, second.Collection.ID, summaries[0].Collection.ID)
	assert.Equal(t, first.Collection.ID, summaries[1].Collection.ID)

	assert.Equal(t, 2, summaries[0].FolderCount)
	assert.Equal(t, 3, summaries[0].TabCount)
}

func TestCollections_GetTree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	captured := captureGroupedWindow(t, env, "Tree")

	tree, err := env.collections.Get(ctx, captured.Collection.ID)
	require.NoError(t, err)

	require.Len(t, tree.Folders, 2)
	for i, ft := range tree.Folders {
		assert.Equal(t, i, ft.Folder.Position)
		for j, tab := range ft.Tabs {
			assert.Equal(t, j, tab.Position)
		}
	}

	_, err = env.collections.Get(ctx, "coll-missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCollections_Rename(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	captured := captureGroupedWindow(t, env, "Before")

	renamed, err := env.collections.Rename(ctx, captured.Collection.ID, "After")
	require.NoError(t, err)
	assert.Equal(t, "After", renamed.Name)
	assert.True(t, renamed.LastAccessed.After(captured.Collection.LastAccessed))

	stored, err := env.store.Collections.Get(ctx, captured.Collection.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", stored.Name)

	_, err = env.collections.Rename(ctx, captured.Collection.ID, "")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = env.collections.Rename(ctx, "coll-missing", "X")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCollections_DeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	captured := captureGroupedWindow(t, env, "Doomed")

	require.NoError(t, env.collections.Delete(ctx, captured.Collection.ID))

	_, err := env.store.Collections.Get(ctx, captured.Collection.ID)
	assert.ErrorIs(t, err, storepkg.ErrNotFound)
	for _, folder := range captured.Folders {
		_, err := env.store.Folders.Get(ctx, folder.ID)
		assert.ErrorIs(t, err, storepkg.ErrNotFound)
	}
	for _, tab := range captured.Tabs {
		_, err := env.store.Tabs.Get(ctx, tab.ID)
		assert.ErrorIs(t, err, storepkg.ErrNotFound)
	}

	err = env.collections.Delete(ctx, captured.Collection.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCollections_DeleteBoundUnbindsFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winID := env.fake.AddWindow()
	env.fake.AddTab(winID, "https://a.test", "A", false)

	captured, err := env.capture.Capture(ctx, service.CaptureRequest{
		WindowID:   winID,
		Name:       "Bound",
		KeepActive: true,
	})
	require.NoError(t, err)
	require.True(t, captured.Collection.IsBound())

	require.NoError(t, env.collections.Delete(ctx, captured.Collection.ID))

	got, err := env.binding.GetForWindow(ctx, winID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
