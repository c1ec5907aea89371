package domain

import (
	"slices"
	"time"
)

// Collection is the durable snapshot of a browser window: its metadata plus
// a tree of folders and tabs. A collection is "active" while bound to a live
// window and "saved" once fully durable. IsActive and WindowID change only
// through Bind/Unbind, never through a generic field update.
type Collection struct {
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Tags         []string  `json:"tags"`
	IsActive     bool      `json:"is_active"`
	WindowID     *int      `json:"window_id,omitempty"` // Live window id, valid only while bound
}

// IsBound reports whether the collection is currently bound to a live window.
func (c *Collection) IsBound() bool {
	return c.IsActive && c.WindowID != nil
}

// Bind associates the collection with a live window.
func (c *Collection) Bind(windowID int) {
	c.IsActive = true
	c.WindowID = &windowID
	c.Touch()
}

// Unbind detaches the collection from its live window, leaving it fully
// durable. Safe to call on an already-unbound collection.
func (c *Collection) Unbind() {
	c.IsActive = false
	c.WindowID = nil
	c.Touch()
}

// Touch updates LastAccessed. Every mutation of the collection or its
// children goes through here.
func (c *Collection) Touch() {
	c.LastAccessed = time.Now()
}

// AddTag adds a tag if not already present.
func (c *Collection) AddTag(tag string) bool {
	if slices.Contains(c.Tags, tag) {
		return false
	}
	c.Tags = append(c.Tags, tag)
	return true
}

// RemoveTag removes a tag from the collection.
func (c *Collection) RemoveTag(tag string) bool {
	for i, t := range c.Tags {
		if t == tag {
			c.Tags = append(c.Tags[:i], c.Tags[i+1:]...)
			return true
		}
	}
	return false
}
