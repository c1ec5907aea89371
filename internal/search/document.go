// Package search provides full-text search over saved tabs using Bleve.
// Every persisted tab is indexed together with denormalized collection
// metadata so a single query can match titles, page URLs, hosts, collection
// names, and tags.
package search

import (
	"net/url"
	"strings"

	"github.com/tabvault/tabvault-server/internal/domain"
)

// TabDocument is the document structure for the Bleve index. One document
// per saved tab, keyed by the tab's durable id.
//
// Collection name and tags are denormalized into each tab document so that
// searching "work" finds every tab inside the "Work" collection without a
// second lookup. The cost is that a collection rename requires reindexing
// its tabs.
type TabDocument struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Host           string   `json:"host"` // Hostname without the www prefix
	CollectionID   string   `json:"collection_id"`
	CollectionName string   `json:"collection_name"`
	Tags           []string `json:"tags,omitempty"`
	Pinned         bool     `json:"pinned"`
	SavedAt        int64    `json:"saved_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *TabDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":              d.ID,
		"title":           d.Title,
		"url":             d.URL,
		"collection_id":   d.CollectionID,
		"collection_name": d.CollectionName,
		"pinned":          d.Pinned,
		"saved_at":        d.SavedAt,
	}

	if d.Host != "" {
		m["host"] = d.Host
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}

	return m
}

// TabToDocument converts a saved tab and its owning collection to a
// TabDocument.
func TabToDocument(tab *domain.Tab, collection *domain.Collection) *TabDocument {
	return &TabDocument{
		ID:             tab.ID,
		Title:          tab.Title,
		URL:            tab.URL,
		Host:           hostOf(tab.URL),
		CollectionID:   collection.ID,
		CollectionName: collection.Name,
		Tags:           collection.Tags,
		Pinned:         tab.IsPinned,
		SavedAt:        collection.CreatedAt.UnixMilli(),
	}
}

// hostOf extracts the hostname from a URL, stripping a leading www.
// Returns "" when the URL does not parse.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
