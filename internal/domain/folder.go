package domain

// UngroupedFolderName is the display name of the synthetic folder holding
// tabs that belong to no live tab-group.
const UngroupedFolderName = "Ungrouped"

// Folder is the durable snapshot of a tab-group within one collection.
// CollectionID is immutable after creation. Every collection additionally
// carries one synthetic "ungrouped" folder for tabs outside any group; it is
// created lazily the first time an ungrouped tab is captured.
type Folder struct {
	ID           string `json:"id"`
	CollectionID string `json:"collection_id"`
	Name         string `json:"name"`
	Color        string `json:"color,omitempty"`
	Position     int    `json:"position"`
	Collapsed    bool   `json:"collapsed"`
	IsUngrouped  bool   `json:"is_ungrouped,omitempty"`
}

// NewUngroupedFolder builds the synthetic folder for tabs with no live group.
// Restoration skips live-group creation for it.
func NewUngroupedFolder(id, collectionID string, position int) *Folder {
	return &Folder{
		ID:           id,
		CollectionID: collectionID,
		Name:         UngroupedFolderName,
		Position:     position,
		IsUngrouped:  true,
	}
}
