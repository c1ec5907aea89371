package domain

// Tab is the durable snapshot of a single page within a folder. FolderID is
// immutable after creation. Position is 0-indexed and stable within the
// folder regardless of live creation order.
//
// LiveID is the ephemeral id the browser assigned to the tab's live
// counterpart. It is set only while such a counterpart exists: restoration
// and wake assign it, capture-without-keepActive and snooze clear it. It is
// never inferred or carried across two different live tabs.
type Tab struct {
	ID         string `json:"id"`
	FolderID   string `json:"folder_id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	FavIconURL string `json:"favicon_url,omitempty"`
	Position   int    `json:"position"`
	IsPinned   bool   `json:"is_pinned"`
	LiveID     *int   `json:"live_id,omitempty"`
}

// HasLive reports whether the tab currently has a live counterpart.
func (t *Tab) HasLive() bool {
	return t.LiveID != nil
}

// SetLive records the ephemeral id of a newly created live counterpart.
func (t *Tab) SetLive(liveID int) {
	t.LiveID = &liveID
}

// ClearLive drops the ephemeral id once the live counterpart is gone.
func (t *Tab) ClearLive() {
	t.LiveID = nil
}
