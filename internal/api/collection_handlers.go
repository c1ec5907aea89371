package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/service"
)

func (s *Server) registerCollectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections",
		Summary:     "List collections",
		Description: "Returns all collections with child counts, most recently accessed first",
		Tags:        []string{"Collections"},
	}, s.handleListCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCollection",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Get collection",
		Description: "Returns one collection with its full folder and tab tree",
		Tags:        []string{"Collections"},
	}, s.handleGetCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "renameCollection",
		Method:      http.MethodPatch,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Rename collection",
		Tags:        []string{"Collections"},
	}, s.handleRenameCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCollection",
		Method:      http.MethodDelete,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Delete collection",
		Description: "Deletes a collection with its folders and tabs. A bound collection is unbound first.",
		Tags:        []string{"Collections"},
	}, s.handleDeleteCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "captureWindow",
		Method:      http.MethodPost,
		Path:        "/api/v1/collections/capture",
		Summary:     "Capture window",
		Description: "Snapshots a live window into a durable collection",
		Tags:        []string{"Collections"},
	}, s.handleCaptureWindow)

	huma.Register(s.api, huma.Operation{
		OperationID: "suggestCollectionName",
		Method:      http.MethodPost,
		Path:        "/api/v1/collections/suggest-name",
		Summary:     "Suggest collection name",
		Description: "Proposes a name for a window capture from its dominant hostname",
		Tags:        []string{"Collections"},
	}, s.handleSuggestName)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreCollection",
		Method:      http.MethodPost,
		Path:        "/api/v1/collections/{id}/restore",
		Summary:     "Restore collection",
		Description: "Recreates a collection's tabs and groups in a live window",
		Tags:        []string{"Collections"},
	}, s.handleRestoreCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "bindCollection",
		Method:      http.MethodPost,
		Path:        "/api/v1/collections/{id}/bind",
		Summary:     "Bind collection",
		Description: "Associates a collection with a live window",
		Tags:        []string{"Collections"},
	}, s.handleBindCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "unbindCollection",
		Method:      http.MethodPost,
		Path:        "/api/v1/collections/{id}/unbind",
		Summary:     "Unbind collection",
		Description: "Detaches a collection from its live window, leaving it fully durable",
		Tags:        []string{"Collections"},
	}, s.handleUnbindCollection)
}

// === DTOs ===

// CollectionResponse contains collection metadata in API responses.
type CollectionResponse struct {
	ID           string    `json:"id" doc:"Durable collection id"`
	Name         string    `json:"name" doc:"Display name"`
	Tags         []string  `json:"tags,omitempty" doc:"Free-form tags"`
	IsActive     bool      `json:"is_active" doc:"Whether the collection is bound to a live window"`
	WindowID     *int      `json:"window_id,omitempty" doc:"Live window id while bound"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// CollectionSummaryResponse is a collection with child counts.
type CollectionSummaryResponse struct {
	CollectionResponse
	FolderCount int `json:"folder_count" doc:"Number of folders including the ungrouped one"`
	TabCount    int `json:"tab_count" doc:"Number of saved tabs"`
}

// TabResponse contains a saved tab in API responses.
type TabResponse struct {
	ID         string `json:"id" doc:"Durable tab id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	FavIconURL string `json:"favicon_url,omitempty"`
	Position   int    `json:"position" doc:"0-indexed position within the folder"`
	IsPinned   bool   `json:"is_pinned"`
	LiveID     *int   `json:"live_id,omitempty" doc:"Ephemeral browser tab id while a live counterpart exists"`
}

// FolderResponse contains a folder with its tabs in position order.
type FolderResponse struct {
	ID          string        `json:"id" doc:"Durable folder id"`
	Name        string        `json:"name"`
	Color       string        `json:"color,omitempty"`
	Position    int           `json:"position"`
	Collapsed   bool          `json:"collapsed"`
	IsUngrouped bool          `json:"is_ungrouped,omitempty" doc:"Synthetic folder for tabs outside any group"`
	Tabs        []TabResponse `json:"tabs"`
}

// CollectionTreeResponse is a fully loaded collection.
type CollectionTreeResponse struct {
	CollectionResponse
	Folders []FolderResponse `json:"folders"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// ListCollectionsOutput wraps the collection list for Huma.
type ListCollectionsOutput struct {
	Body []CollectionSummaryResponse
}

// GetCollectionInput identifies a collection by path id.
type GetCollectionInput struct {
	ID string `path:"id" doc:"Collection id"`
}

// GetCollectionOutput wraps the collection tree for Huma.
type GetCollectionOutput struct {
	Body CollectionTreeResponse
}

// RenameCollectionInput carries the new name.
type RenameCollectionInput struct {
	ID   string `path:"id" doc:"Collection id"`
	Body struct {
		Name string `json:"name" required:"true" maxLength:"256" doc:"New display name"`
	}
}

// RenameCollectionOutput wraps the renamed collection.
type RenameCollectionOutput struct {
	Body CollectionResponse
}

// DeleteCollectionInput identifies the collection to delete.
type DeleteCollectionInput struct {
	ID string `path:"id" doc:"Collection id"`
}

// CaptureInput contains parameters for capturing a live window.
type CaptureInput struct {
	Body struct {
		WindowID   int      `json:"window_id" required:"true" doc:"Live window id to capture"`
		Name       string   `json:"name,omitempty" maxLength:"256" doc:"Collection name; a default is used when omitted"`
		Tags       []string `json:"tags,omitempty" doc:"Tags for the new collection"`
		KeepActive bool     `json:"keep_active,omitempty" doc:"Bind the new collection to the window and keep its tabs live"`
	}
}

// CaptureResponse reports the captured tree and per-skip warnings.
type CaptureResponse struct {
	Collection CollectionResponse `json:"collection"`
	Folders    []FolderResponse   `json:"folders"`
	Stats      CaptureStats       `json:"stats"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// CaptureStats summarizes a capture.
type CaptureStats struct {
	TabsCaptured    int `json:"tabs_captured"`
	TabsSkipped     int `json:"tabs_skipped"`
	FoldersCaptured int `json:"folders_captured"`
}

// CaptureOutput wraps the capture response for Huma.
type CaptureOutput struct {
	Body CaptureResponse
}

// SuggestNameInput identifies the window to inspect.
type SuggestNameInput struct {
	Body struct {
		WindowID int `json:"window_id" required:"true" doc:"Live window id"`
	}
}

// SuggestNameOutput wraps the suggested name.
type SuggestNameOutput struct {
	Body struct {
		Name string `json:"name" doc:"Suggested collection name"`
	}
}

// RestoreInput contains parameters for restoring a collection.
type RestoreInput struct {
	ID   string `path:"id" doc:"Collection id"`
	Body struct {
		CreateNewWindow bool   `json:"create_new_window,omitempty" doc:"Open a fresh window for the restoration"`
		WindowID        *int   `json:"window_id,omitempty" doc:"Existing window to restore into; required unless create_new_window"`
		Focused         bool   `json:"focused,omitempty" doc:"Focus the new window"`
		WindowState     string `json:"window_state,omitempty" enum:"normal,maximized,fullscreen" doc:"State of the new window"`
	}
}

// RestoreResponse reports where the collection was restored and how it went.
type RestoreResponse struct {
	CollectionID string        `json:"collection_id"`
	WindowID     int           `json:"window_id" doc:"Window the tabs were created in"`
	Tabs         []TabResponse `json:"tabs"`
	Stats        RestoreStats  `json:"stats"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// RestoreStats summarizes a restoration.
type RestoreStats struct {
	TabsRestored   int `json:"tabs_restored"`
	TabsSkipped    int `json:"tabs_skipped"`
	GroupsRestored int `json:"groups_restored"`
}

// RestoreOutput wraps the restore response for Huma.
type RestoreOutput struct {
	Body RestoreResponse
}

// BindInput associates a collection with a window.
type BindInput struct {
	ID   string `path:"id" doc:"Collection id"`
	Body struct {
		WindowID int `json:"window_id" required:"true" doc:"Live window id"`
	}
}

// UnbindInput identifies the collection to unbind.
type UnbindInput struct {
	ID string `path:"id" doc:"Collection id"`
}

// === Handlers ===

func (s *Server) handleListCollections(ctx context.Context, _ *struct{}) (*ListCollectionsOutput, error) {
	summaries, err := s.services.Collection.List(ctx)
	if err != nil {
		s.logger.Error("failed to list collections", "error", err)
		return nil, err
	}

	resp := make([]CollectionSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		resp = append(resp, CollectionSummaryResponse{
			CollectionResponse: toCollectionResponse(summary.Collection),
			FolderCount:        summary.FolderCount,
			TabCount:           summary.TabCount,
		})
	}

	return &ListCollectionsOutput{Body: resp}, nil
}

func (s *Server) handleGetCollection(ctx context.Context, input *GetCollectionInput) (*GetCollectionOutput, error) {
	tree, err := s.services.Collection.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	resp := CollectionTreeResponse{
		CollectionResponse: toCollectionResponse(tree.Collection),
		Folders:            make([]FolderResponse, 0, len(tree.Folders)),
	}
	for _, ft := range tree.Folders {
		resp.Folders = append(resp.Folders, toFolderResponse(ft.Folder, ft.Tabs))
	}

	return &GetCollectionOutput{Body: resp}, nil
}

func (s *Server) handleRenameCollection(ctx context.Context, input *RenameCollectionInput) (*RenameCollectionOutput, error) {
	collection, err := s.services.Collection.Rename(ctx, input.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &RenameCollectionOutput{Body: toCollectionResponse(collection)}, nil
}

func (s *Server) handleDeleteCollection(ctx context.Context, input *DeleteCollectionInput) (*MessageOutput, error) {
	if err := s.services.Collection.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "collection deleted"}}, nil
}

func (s *Server) handleCaptureWindow(ctx context.Context, input *CaptureInput) (*CaptureOutput, error) {
	name := input.Body.Name
	if name == "" {
		name = service.DefaultCollectionName
	}

	result, err := s.services.Capture.Capture(ctx, service.CaptureRequest{
		WindowID:   input.Body.WindowID,
		Name:       name,
		Tags:       input.Body.Tags,
		KeepActive: input.Body.KeepActive,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("window captured",
		"window_id", input.Body.WindowID,
		"collection_id", result.Collection.ID,
		"tabs", result.Stats.TabsCaptured,
	)

	// Group the flat tab list under its folders for the response.
	tabsByFolder := make(map[string][]*domain.Tab)
	for _, tab := range result.Tabs {
		tabsByFolder[tab.FolderID] = append(tabsByFolder[tab.FolderID], tab)
	}

	resp := CaptureResponse{
		Collection: toCollectionResponse(result.Collection),
		Folders:    make([]FolderResponse, 0, len(result.Folders)),
		Stats: CaptureStats{
			TabsCaptured:    result.Stats.TabsCaptured,
			TabsSkipped:     result.Stats.TabsSkipped,
			FoldersCaptured: result.Stats.FoldersCaptured,
		},
		Warnings: result.Warnings,
	}
	for _, folder := range result.Folders {
		resp.Folders = append(resp.Folders, toFolderResponse(folder, tabsByFolder[folder.ID]))
	}

	return &CaptureOutput{Body: resp}, nil
}

func (s *Server) handleSuggestName(ctx context.Context, input *SuggestNameInput) (*SuggestNameOutput, error) {
	name, err := s.services.Capture.SuggestNameForWindow(ctx, input.Body.WindowID)
	if err != nil {
		return nil, err
	}

	out := &SuggestNameOutput{}
	out.Body.Name = name
	return out, nil
}

func (s *Server) handleRestoreCollection(ctx context.Context, input *RestoreInput) (*RestoreOutput, error) {
	result, err := s.services.Restore.Restore(ctx, service.RestoreRequest{
		CollectionID:    input.ID,
		CreateNewWindow: input.Body.CreateNewWindow,
		WindowID:        input.Body.WindowID,
		Focused:         input.Body.Focused,
		WindowState:     input.Body.WindowState,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("collection restored",
		"collection_id", input.ID,
		"window_id", result.WindowID,
		"tabs", result.Stats.TabsRestored,
	)

	resp := RestoreResponse{
		CollectionID: result.CollectionID,
		WindowID:     result.WindowID,
		Tabs:         make([]TabResponse, 0, len(result.Tabs)),
		Stats: RestoreStats{
			TabsRestored:   result.Stats.TabsRestored,
			TabsSkipped:    result.Stats.TabsSkipped,
			GroupsRestored: result.Stats.GroupsRestored,
		},
		Warnings: result.Warnings,
	}
	for _, tab := range result.Tabs {
		resp.Tabs = append(resp.Tabs, toTabResponse(tab))
	}

	return &RestoreOutput{Body: resp}, nil
}

func (s *Server) handleBindCollection(ctx context.Context, input *BindInput) (*MessageOutput, error) {
	if err := s.services.Binding.Bind(ctx, input.ID, input.Body.WindowID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "collection bound"}}, nil
}

func (s *Server) handleUnbindCollection(ctx context.Context, input *UnbindInput) (*MessageOutput, error) {
	if err := s.services.Binding.Unbind(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "collection unbound"}}, nil
}

// === Conversions ===

func toCollectionResponse(c *domain.Collection) CollectionResponse {
	return CollectionResponse{
		ID:           c.ID,
		Name:         c.Name,
		Tags:         c.Tags,
		IsActive:     c.IsActive,
		WindowID:     c.WindowID,
		CreatedAt:    c.CreatedAt,
		LastAccessed: c.LastAccessed,
	}
}

func toTabResponse(t *domain.Tab) TabResponse {
	return TabResponse{
		ID:         t.ID,
		URL:        t.URL,
		Title:      t.Title,
		FavIconURL: t.FavIconURL,
		Position:   t.Position,
		IsPinned:   t.IsPinned,
		LiveID:     t.LiveID,
	}
}

func toFolderResponse(f *domain.Folder, tabs []*domain.Tab) FolderResponse {
	resp := FolderResponse{
		ID:          f.ID,
		Name:        f.Name,
		Color:       f.Color,
		Position:    f.Position,
		Collapsed:   f.Collapsed,
		IsUngrouped: f.IsUngrouped,
		Tabs:        make([]TabResponse, 0, len(tabs)),
	}
	for _, tab := range tabs {
		resp.Tabs = append(resp.Tabs, toTabResponse(tab))
	}
	return resp
}
