package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabvault/tabvault-server/internal/domain"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{
		DataPath: t.TempDir(),
		Logger:   nil,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = index.Close() })

	return index
}

func testCollection(id, name string, tags ...string) *domain.Collection {
	return &domain.Collection{
		ID:        id,
		Name:      name,
		Tags:      tags,
		CreatedAt: time.Now(),
	}
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexTab(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	tab := &domain.Tab{
		ID:    "tab-1",
		URL:   "https://www.github.com/golang/go",
		Title: "The Go Programming Language",
	}
	coll := testCollection("coll-1", "Work")

	require.NoError(t, index.IndexTab(ctx, tab, coll))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_RemoveTab(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	tab := &domain.Tab{ID: "tab-1", URL: "https://a.test", Title: "A"}
	require.NoError(t, index.IndexTab(ctx, tab, testCollection("coll-1", "Work")))

	require.NoError(t, index.RemoveTab(ctx, "tab-1"))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Search_Basic(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	work := testCollection("coll-1", "Work")
	personal := testCollection("coll-2", "Personal")

	tabs := []struct {
		tab  *domain.Tab
		coll *domain.Collection
	}{
		{&domain.Tab{ID: "tab-1", URL: "https://github.com/golang/go", Title: "Go repository"}, work},
		{&domain.Tab{ID: "tab-2", URL: "https://pkg.go.dev/net/http", Title: "net/http documentation"}, work},
		{&domain.Tab{ID: "tab-3", URL: "https://news.example.com", Title: "Morning news"}, personal},
	}
	for _, entry := range tabs {
		require.NoError(t, index.IndexTab(ctx, entry.tab, entry.coll))
	}

	params := DefaultSearchParams()
	params.Query = "repository"

	result, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "tab-1", result.Hits[0].ID)
	assert.Equal(t, "Go repository", result.Hits[0].Title)
	assert.Equal(t, "Work", result.Hits[0].CollectionName)
}

func TestSearchIndex_Search_MatchesHost(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	coll := testCollection("coll-1", "Reading")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{
		ID:    "tab-1",
		URL:   "https://www.github.com/blevesearch/bleve",
		Title: "Full-text indexing library",
	}, coll))

	params := DefaultSearchParams()
	params.Query = "github"

	result, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "github.com", result.Hits[0].Host)
}

func TestSearchIndex_Search_MatchesCollectionName(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	coll := testCollection("coll-1", "Vacation Planning")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{
		ID:    "tab-1",
		URL:   "https://flights.example.com",
		Title: "Cheap flights",
	}, coll))

	params := DefaultSearchParams()
	params.Query = "vacation"

	result, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "tab-1", result.Hits[0].ID)
}

func TestSearchIndex_Search_CollectionFilter(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	work := testCollection("coll-1", "Work")
	personal := testCollection("coll-2", "Personal")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-1", URL: "https://docs.test", Title: "Design docs"}, work))
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-2", URL: "https://docs.test/other", Title: "Recipe docs"}, personal))

	params := DefaultSearchParams()
	params.Query = "docs"
	params.CollectionID = "coll-2"

	result, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "tab-2", result.Hits[0].ID)
}

func TestSearchIndex_Search_TagFilter(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	tagged := testCollection("coll-1", "Research", "side-project")
	plain := testCollection("coll-2", "Research Two")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-1", URL: "https://a.test", Title: "Paper one"}, tagged))
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-2", URL: "https://b.test", Title: "Paper two"}, plain))

	params := DefaultSearchParams()
	params.Query = "paper"
	params.Tags = []string{"side-project"}

	result, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "tab-1", result.Hits[0].ID)
	assert.Equal(t, []string{"side-project"}, result.Hits[0].Tags)
}

func TestSearchIndex_Search_Highlights(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	coll := testCollection("coll-1", "Work")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{
		ID:    "tab-1",
		URL:   "https://a.test",
		Title: "Quarterly planning notes",
	}, coll))

	params := DefaultSearchParams()
	params.Query = "planning"

	result, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Contains(t, result.Hits[0].Highlights, "title")
	assert.Contains(t, result.Hits[0].Highlights["title"], "<mark>")
}

func TestSearchIndex_Search_EmptyQueryMatchesAll(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	coll := testCollection("coll-1", "Work")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-1", URL: "https://a.test", Title: "A"}, coll))
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-2", URL: "https://b.test", Title: "B"}, coll))

	params := DefaultSearchParams()

	result, err := index.Search(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
}

func TestSearchIndex_RemoveCollection(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	work := testCollection("coll-1", "Work")
	other := testCollection("coll-2", "Other")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-1", URL: "https://a.test", Title: "A"}, work))
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-2", URL: "https://b.test", Title: "B"}, work))
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-3", URL: "https://c.test", Title: "C"}, other))

	require.NoError(t, index.RemoveCollection(ctx, "coll-1"))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	coll := testCollection("coll-1", "Work")
	require.NoError(t, index.IndexTab(ctx, &domain.Tab{ID: "tab-1", URL: "https://a.test", Title: "A"}, coll))

	require.NoError(t, index.Rebuild())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
