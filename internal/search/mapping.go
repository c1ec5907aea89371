package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for tab documents.
//
// The mapping is designed with these priorities:
//  1. Fast full-text search on titles with English stemming
//  2. Simple tokenization on URLs and hosts so path segments match
//  3. Exact keyword matching for collection ids and tags
//  4. Term vectors enabled on key fields for highlighting
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Title - primary search target, boosted at query time
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	// URL - simple analyzer splits on punctuation so path segments match
	urlFieldMapping := bleve.NewTextFieldMapping()
	urlFieldMapping.Analyzer = simple.Name
	urlFieldMapping.Store = true
	urlFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("url", urlFieldMapping)

	// Host - simple analyzer so "github.com" matches "github"
	hostFieldMapping := bleve.NewTextFieldMapping()
	hostFieldMapping.Analyzer = simple.Name
	hostFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("host", hostFieldMapping)

	// Collection name - searchable so collection context is findable
	collNameFieldMapping := bleve.NewTextFieldMapping()
	collNameFieldMapping.Analyzer = en.AnalyzerName
	collNameFieldMapping.Store = true
	collNameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("collection_name", collNameFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	// ID - stored but not analyzed
	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Collection id - for scoping a search to one collection
	collIDFieldMapping := bleve.NewTextFieldMapping()
	collIDFieldMapping.Analyzer = keyword.Name
	collIDFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("collection_id", collIDFieldMapping)

	// Tags - keyword analyzer keeps compound tags intact (e.g., "side-project")
	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	tagsFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	// --- Other fields ---

	pinnedFieldMapping := bleve.NewBooleanFieldMapping()
	pinnedFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("pinned", pinnedFieldMapping)

	// Saved-at - for sorting by recency
	savedAtFieldMapping := bleve.NewNumericFieldMapping()
	savedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("saved_at", savedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
