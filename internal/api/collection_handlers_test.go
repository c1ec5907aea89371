package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabvault/tabvault-server/internal/service"
)

func TestCaptureWindow(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs(
		[2]string{"https://github.com/golang/go", "golang/go"},
		[2]string{"https://github.com/etcd-io/bbolt", "bbolt"},
		[2]string{"https://pkg.go.dev/context", "context package"},
	)

	resp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      "Work",
		"tags":      []string{"dev"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.Equal(t, 1, envelope.V)
	assert.True(t, envelope.Success)
	assert.Equal(t, "Work", envelope.Data.Collection.Name)
	assert.Equal(t, []string{"dev"}, envelope.Data.Collection.Tags)
	assert.False(t, envelope.Data.Collection.IsActive)
	assert.Equal(t, 3, envelope.Data.Stats.TabsCaptured)
	require.NotEmpty(t, envelope.Data.Folders)

	// Default capture closes the source window.
	assert.False(t, ts.fake.WindowExists(winID))
}

func TestCaptureWindow_DefaultName(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs([2]string{"https://example.test", "Example"})

	resp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, service.DefaultCollectionName, envelope.Data.Collection.Name)
}

func TestCaptureWindow_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": 9999,
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	var envelope testEnvelope[struct{}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "NOT_FOUND", envelope.Code)
}

func TestCaptureWindow_KeepActiveBinds(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs([2]string{"https://a.test", "A"})

	resp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id":   winID,
		"name":        "Active",
		"keep_active": true,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.True(t, envelope.Data.Collection.IsActive)
	require.NotNil(t, envelope.Data.Collection.WindowID)
	assert.Equal(t, winID, *envelope.Data.Collection.WindowID)
	assert.True(t, ts.fake.WindowExists(winID))
}

func TestListCollections(t *testing.T) {
	ts := setupTestServer(t)

	for _, name := range []string{"First", "Second"} {
		winID := ts.addWindowWithTabs(
			[2]string{"https://a.test", "A"},
			[2]string{"https://b.test", "B"},
		)
		resp := ts.api.Post("/api/v1/collections/capture", map[string]any{
			"window_id": winID,
			"name":      name,
		})
		require.Equal(t, http.StatusOK, resp.Code)
	}

	resp := ts.api.Get("/api/v1/collections")
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[[]CollectionSummaryResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	require.Len(t, envelope.Data, 2)
	// Most recently accessed first.
	assert.Equal(t, "Second", envelope.Data[0].Name)
	assert.Equal(t, "First", envelope.Data[1].Name)
	assert.Equal(t, 2, envelope.Data[0].TabCount)
	assert.GreaterOrEqual(t, envelope.Data[0].FolderCount, 1)
}

func TestGetCollection(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs(
		[2]string{"https://a.test", "A"},
		[2]string{"https://b.test", "B"},
	)
	capResp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      "Tree",
	})
	require.Equal(t, http.StatusOK, capResp.Code)

	var captured testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(capResp.Body.Bytes(), &captured))

	resp := ts.api.Get("/api/v1/collections/" + captured.Data.Collection.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[CollectionTreeResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.Equal(t, "Tree", envelope.Data.Name)
	require.NotEmpty(t, envelope.Data.Folders)

	total := 0
	for _, folder := range envelope.Data.Folders {
		for i, tab := range folder.Tabs {
			assert.Equal(t, i, tab.Position)
		}
		total += len(folder.Tabs)
	}
	assert.Equal(t, 2, total)
}

func TestGetCollection_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/collections/no-such-id")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRenameCollection(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs([2]string{"https://a.test", "A"})
	capResp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      "Before",
	})
	require.Equal(t, http.StatusOK, capResp.Code)

	var captured testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(capResp.Body.Bytes(), &captured))
	id := captured.Data.Collection.ID

	resp := ts.api.Patch("/api/v1/collections/"+id, map[string]any{
		"name": "After",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[CollectionResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "After", envelope.Data.Name)

	// Empty name is rejected.
	resp = ts.api.Patch("/api/v1/collections/"+id, map[string]any{
		"name": "",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = ts.api.Patch("/api/v1/collections/no-such-id", map[string]any{
		"name": "Whatever",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteCollection(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs([2]string{"https://a.test", "A"})
	capResp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      "Doomed",
	})
	require.Equal(t, http.StatusOK, capResp.Code)

	var captured testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(capResp.Body.Bytes(), &captured))
	id := captured.Data.Collection.ID

	resp := ts.api.Delete("/api/v1/collections/" + id)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/collections/" + id)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	// Deleting again reports not found.
	resp = ts.api.Delete("/api/v1/collections/" + id)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRestoreCollection_NewWindow(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs(
		[2]string{"https://a.test", "A"},
		[2]string{"https://b.test", "B"},
		[2]string{"https://c.test", "C"},
	)
	capResp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      "Roundtrip",
	})
	require.Equal(t, http.StatusOK, capResp.Code)

	var captured testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(capResp.Body.Bytes(), &captured))
	id := captured.Data.Collection.ID

	resp := ts.api.Post("/api/v1/collections/"+id+"/restore", map[string]any{
		"create_new_window": true,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[RestoreResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.Equal(t, id, envelope.Data.CollectionID)
	assert.Equal(t, 3, envelope.Data.Stats.TabsRestored)
	assert.Len(t, envelope.Data.Tabs, 3)
	for _, tab := range envelope.Data.Tabs {
		require.NotNil(t, tab.LiveID)
	}
	assert.Len(t, ts.fake.TabsInWindow(envelope.Data.WindowID), 3)
}

func TestRestoreCollection_RequiresTarget(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs([2]string{"https://a.test", "A"})
	capResp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      "NoTarget",
	})
	require.Equal(t, http.StatusOK, capResp.Code)

	var captured testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(capResp.Body.Bytes(), &captured))

	resp := ts.api.Post("/api/v1/collections/"+captured.Data.Collection.ID+"/restore", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestBindAndUnbindCollection(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs([2]string{"https://a.test", "A"})
	capResp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      "Bindable",
	})
	require.Equal(t, http.StatusOK, capResp.Code)

	var captured testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(capResp.Body.Bytes(), &captured))
	id := captured.Data.Collection.ID

	target := ts.fake.AddWindow()
	resp := ts.api.Post("/api/v1/collections/"+id+"/bind", map[string]any{
		"window_id": target,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	getResp := ts.api.Get("/api/v1/collections/" + id)
	var bound testEnvelope[CollectionTreeResponse]
	require.NoError(t, json.Unmarshal(getResp.Body.Bytes(), &bound))
	assert.True(t, bound.Data.IsActive)
	require.NotNil(t, bound.Data.WindowID)
	assert.Equal(t, target, *bound.Data.WindowID)

	resp = ts.api.Post("/api/v1/collections/"+id+"/unbind", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)

	// Decode into a fresh envelope; an omitted window_id must come back nil,
	// not the pointer left over from the previous response.
	getResp = ts.api.Get("/api/v1/collections/" + id)
	var unbound testEnvelope[CollectionTreeResponse]
	require.NoError(t, json.Unmarshal(getResp.Body.Bytes(), &unbound))
	assert.False(t, unbound.Data.IsActive)
	assert.Nil(t, unbound.Data.WindowID)
}

func TestSuggestCollectionName(t *testing.T) {
	ts := setupTestServer(t)

	winID := ts.addWindowWithTabs(
		[2]string{"https://github.com/a", "a"},
		[2]string{"https://github.com/b", "b"},
		[2]string{"https://github.com/c", "c"},
		[2]string{"https://other.test", "other"},
	)

	resp := ts.api.Post("/api/v1/collections/suggest-name", map[string]any{
		"window_id": winID,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[struct {
		Name string `json:"name"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "github.com", envelope.Data.Name)
}
