package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureNamed snapshots a window of pages into a collection and returns
// the collection id.
func (ts *testServer) captureNamed(t *testing.T, name string, pages ...[2]string) string {
	t.Helper()

	winID := ts.addWindowWithTabs(pages...)
	resp := ts.api.Post("/api/v1/collections/capture", map[string]any{
		"window_id": winID,
		"name":      name,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[CaptureResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data.Collection.ID
}

func TestSearch_Basic(t *testing.T) {
	ts := setupTestServer(t)

	ts.captureNamed(t, "Work",
		[2]string{"https://sheets.test/q3", "Quarterly budget spreadsheet"},
		[2]string{"https://github.com/golang/go", "golang/go repository"},
	)
	ts.captureNamed(t, "Travel",
		[2]string{"https://flights.test", "Cheap flights to Lisbon"},
	)

	resp := ts.api.Get("/api/v1/search?q=budget")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[SearchResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.Equal(t, "budget", envelope.Data.Query)
	require.Len(t, envelope.Data.Hits, 1)
	hit := envelope.Data.Hits[0]
	assert.Equal(t, "Quarterly budget spreadsheet", hit.Title)
	assert.Equal(t, "Work", hit.CollectionName)
	assert.NotEmpty(t, hit.Highlights)
}

func TestSearch_CollectionFilter(t *testing.T) {
	ts := setupTestServer(t)

	workID := ts.captureNamed(t, "Work",
		[2]string{"https://docs.test/spec", "Design document"},
	)
	ts.captureNamed(t, "Personal",
		[2]string{"https://recipes.test", "Bread recipe document"},
	)

	resp := ts.api.Get("/api/v1/search?q=document&collection_id=" + workID)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[SearchResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	require.Len(t, envelope.Data.Hits, 1)
	assert.Equal(t, workID, envelope.Data.Hits[0].CollectionID)
}

func TestSearch_EmptyQueryBrowsesAll(t *testing.T) {
	ts := setupTestServer(t)

	ts.captureNamed(t, "Everything",
		[2]string{"https://a.test", "A"},
		[2]string{"https://b.test", "B"},
		[2]string{"https://c.test", "C"},
	)

	resp := ts.api.Get("/api/v1/search")
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[SearchResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, int64(3), envelope.Data.Total)
}

func TestSearch_DeletedCollectionLeavesIndex(t *testing.T) {
	ts := setupTestServer(t)

	id := ts.captureNamed(t, "Ephemeral",
		[2]string{"https://gone.test", "Soon forgotten page"},
	)

	resp := ts.api.Delete("/api/v1/collections/" + id)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/search?q=forgotten")
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[SearchResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Empty(t, envelope.Data.Hits)
}
