package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tabvault/tabvault-server/internal/domain"
	"github.com/tabvault/tabvault-server/internal/errors"
	"github.com/tabvault/tabvault-server/internal/service"
)

func (s *Server) registerSnoozeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "snoozeTabs",
		Method:      http.MethodPost,
		Path:        "/api/v1/snoozes",
		Summary:     "Snooze tabs",
		Description: "Closes live tabs and schedules their restoration",
		Tags:        []string{"Snoozes"},
	}, s.handleSnoozeTabs)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSnoozes",
		Method:      http.MethodGet,
		Path:        "/api/v1/snoozes",
		Summary:     "List snoozed items",
		Description: "Returns all unresolved snoozed items, soonest wake first",
		Tags:        []string{"Snoozes"},
	}, s.handleListSnoozes)

	huma.Register(s.api, huma.Operation{
		OperationID: "wakeSnoozes",
		Method:      http.MethodPost,
		Path:        "/api/v1/snoozes/wake",
		Summary:     "Wake snoozed items",
		Description: "Reopens snoozed items ahead of their wake time",
		Tags:        []string{"Snoozes"},
	}, s.handleWakeSnoozes)

	huma.Register(s.api, huma.Operation{
		OperationID: "rescheduleSnooze",
		Method:      http.MethodPatch,
		Path:        "/api/v1/snoozes/{id}",
		Summary:     "Reschedule snoozed item",
		Description: "Moves an item's wake time; everything else is immutable",
		Tags:        []string{"Snoozes"},
	}, s.handleRescheduleSnooze)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteSnooze",
		Method:      http.MethodDelete,
		Path:        "/api/v1/snoozes/{id}",
		Summary:     "Delete snoozed item",
		Description: "Cancels a snooze without reopening the tab",
		Tags:        []string{"Snoozes"},
	}, s.handleDeleteSnooze)

	huma.Register(s.api, huma.Operation{
		OperationID: "snoozeWindow",
		Method:      http.MethodPost,
		Path:        "/api/v1/snoozes/window",
		Summary:     "Snooze window",
		Description: "Snoozes every capturable tab of a window and closes it",
		Tags:        []string{"Snoozes"},
	}, s.handleSnoozeWindow)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreSnoozedWindow",
		Method:      http.MethodPost,
		Path:        "/api/v1/snoozes/window/{windowSnoozeId}/restore",
		Summary:     "Restore snoozed window",
		Description: "Recreates a snoozed window with its remembered geometry",
		Tags:        []string{"Snoozes"},
	}, s.handleRestoreSnoozedWindow)
}

// === DTOs ===

// SnoozedItemResponse contains a snoozed item in API responses.
type SnoozedItemResponse struct {
	ID              string    `json:"id" doc:"Durable item id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	FavIconURL      string    `json:"favicon_url,omitempty"`
	WindowSnoozeID  string    `json:"window_snooze_id,omitempty" doc:"Set when the item was snoozed as part of a whole window"`
	SourceWindowID  int       `json:"source_window_id" doc:"Window the tab was snoozed from"`
	OriginalGroupID *int      `json:"original_group_id,omitempty" doc:"Live group the tab belonged to when snoozed"`
	Mode            string    `json:"restoration_mode" doc:"Destination policy on wake: original, current, or new"`
	CreatedAt       time.Time `json:"created_at"`
	WakeAt          time.Time `json:"wake_at"`
}

// SnoozeTabsInput contains parameters for snoozing tabs.
type SnoozeTabsInput struct {
	Body struct {
		TabIDs []int     `json:"tab_ids" required:"true" minItems:"1" doc:"Live tab ids to snooze"`
		WakeAt time.Time `json:"wake_at" required:"true" doc:"When the tabs reopen"`
		Mode   string    `json:"mode,omitempty" enum:"original,current,new" doc:"Destination policy on wake (default original)"`
	}
}

// SnoozeTabsResponse reports the created items.
type SnoozeTabsResponse struct {
	Items    []SnoozedItemResponse `json:"items"`
	Warnings []string              `json:"warnings,omitempty"`
}

// SnoozeTabsOutput wraps the snooze response for Huma.
type SnoozeTabsOutput struct {
	Body SnoozeTabsResponse
}

// ListSnoozesOutput wraps the item list for Huma.
type ListSnoozesOutput struct {
	Body []SnoozedItemResponse
}

// WakeInput contains parameters for waking items early.
type WakeInput struct {
	Body struct {
		ItemIDs        []string `json:"item_ids" required:"true" minItems:"1" doc:"Snoozed item ids to wake"`
		TargetWindowID *int     `json:"target_window_id,omitempty" doc:"Overrides each item's destination policy"`
		MakeActive     bool     `json:"make_active,omitempty" doc:"Focus the first reopened tab"`
	}
}

// WakeResponse reports the new live tab ids.
type WakeResponse struct {
	LiveTabIDs []int    `json:"live_tab_ids"`
	Warnings   []string `json:"warnings,omitempty"`
}

// WakeOutput wraps the wake response for Huma.
type WakeOutput struct {
	Body WakeResponse
}

// RescheduleInput moves an item's wake time.
type RescheduleInput struct {
	ID   string `path:"id" doc:"Snoozed item id"`
	Body struct {
		WakeAt time.Time `json:"wake_at" required:"true" doc:"New wake time"`
	}
}

// RescheduleOutput wraps the updated item.
type RescheduleOutput struct {
	Body SnoozedItemResponse
}

// DeleteSnoozeInput identifies the item to delete.
type DeleteSnoozeInput struct {
	ID string `path:"id" doc:"Snoozed item id"`
}

// SnoozeWindowInput contains parameters for snoozing a whole window.
type SnoozeWindowInput struct {
	Body struct {
		WindowID        int    `json:"window_id" required:"true" doc:"Live window id to snooze"`
		DurationMinutes int    `json:"duration_minutes" required:"true" minimum:"1" doc:"Minutes until the window reopens"`
		Mode            string `json:"mode,omitempty" enum:"original,current,new" doc:"Destination policy on wake (default original)"`
	}
}

// SnoozeWindowResponse reports a whole-window snooze.
type SnoozeWindowResponse struct {
	WindowSnoozeID string                `json:"window_snooze_id" doc:"Identifies the snoozed window for restore"`
	Items          []SnoozedItemResponse `json:"items"`
	Warnings       []string              `json:"warnings,omitempty"`
}

// SnoozeWindowOutput wraps the window snooze response for Huma.
type SnoozeWindowOutput struct {
	Body SnoozeWindowResponse
}

// RestoreWindowInput identifies the snoozed window to restore.
type RestoreWindowInput struct {
	WindowSnoozeID string `path:"windowSnoozeId" doc:"Window snooze id"`
}

// RestoreWindowResponse reports a window wake.
type RestoreWindowResponse struct {
	WindowID     int      `json:"window_id" doc:"The recreated window"`
	TabsRestored int      `json:"tabs_restored"`
	Warnings     []string `json:"warnings,omitempty"`
}

// RestoreWindowOutput wraps the window restore response for Huma.
type RestoreWindowOutput struct {
	Body RestoreWindowResponse
}

// === Handlers ===

func (s *Server) handleSnoozeTabs(ctx context.Context, input *SnoozeTabsInput) (*SnoozeTabsOutput, error) {
	mode, err := domain.ParseRestorationMode(input.Body.Mode)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	result, err := s.services.Snooze.Snooze(ctx, service.SnoozeRequest{
		TabIDs: input.Body.TabIDs,
		WakeAt: input.Body.WakeAt,
		Mode:   mode,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tabs snoozed", "count", len(result.Items), "wake_at", input.Body.WakeAt)

	return &SnoozeTabsOutput{Body: SnoozeTabsResponse{
		Items:    toSnoozedItemResponses(result.Items),
		Warnings: result.Warnings,
	}}, nil
}

func (s *Server) handleListSnoozes(ctx context.Context, _ *struct{}) (*ListSnoozesOutput, error) {
	items, err := s.services.Snooze.List(ctx)
	if err != nil {
		s.logger.Error("failed to list snoozed items", "error", err)
		return nil, err
	}
	return &ListSnoozesOutput{Body: toSnoozedItemResponses(items)}, nil
}

func (s *Server) handleWakeSnoozes(ctx context.Context, input *WakeInput) (*WakeOutput, error) {
	result, err := s.services.Snooze.Wake(ctx, service.WakeRequest{
		ItemIDs:        input.Body.ItemIDs,
		TargetWindowID: input.Body.TargetWindowID,
		MakeActive:     input.Body.MakeActive,
	})
	if err != nil {
		return nil, err
	}

	return &WakeOutput{Body: WakeResponse{
		LiveTabIDs: result.LiveTabIDs,
		Warnings:   result.Warnings,
	}}, nil
}

func (s *Server) handleRescheduleSnooze(ctx context.Context, input *RescheduleInput) (*RescheduleOutput, error) {
	item, err := s.services.Snooze.Reschedule(ctx, input.ID, input.Body.WakeAt)
	if err != nil {
		return nil, err
	}
	return &RescheduleOutput{Body: toSnoozedItemResponse(item)}, nil
}

func (s *Server) handleDeleteSnooze(ctx context.Context, input *DeleteSnoozeInput) (*MessageOutput, error) {
	if err := s.services.Snooze.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "snooze deleted"}}, nil
}

func (s *Server) handleSnoozeWindow(ctx context.Context, input *SnoozeWindowInput) (*SnoozeWindowOutput, error) {
	mode, err := domain.ParseRestorationMode(input.Body.Mode)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	duration := time.Duration(input.Body.DurationMinutes) * time.Minute
	result, err := s.services.Snooze.SnoozeWindow(ctx, input.Body.WindowID, duration, mode)
	if err != nil {
		return nil, err
	}

	s.logger.Info("window snoozed",
		"window_id", input.Body.WindowID,
		"window_snooze_id", result.WindowSnoozeID,
		"items", len(result.Items),
	)

	return &SnoozeWindowOutput{Body: SnoozeWindowResponse{
		WindowSnoozeID: result.WindowSnoozeID,
		Items:          toSnoozedItemResponses(result.Items),
		Warnings:       result.Warnings,
	}}, nil
}

func (s *Server) handleRestoreSnoozedWindow(ctx context.Context, input *RestoreWindowInput) (*RestoreWindowOutput, error) {
	result, err := s.services.Snooze.RestoreWindow(ctx, input.WindowSnoozeID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("snoozed window restored",
		"window_snooze_id", input.WindowSnoozeID,
		"window_id", result.WindowID,
		"tabs", result.TabsRestored,
	)

	return &RestoreWindowOutput{Body: RestoreWindowResponse{
		WindowID:     result.WindowID,
		TabsRestored: result.TabsRestored,
		Warnings:     result.Warnings,
	}}, nil
}

// === Conversions ===

func toSnoozedItemResponse(item *domain.SnoozedItem) SnoozedItemResponse {
	return SnoozedItemResponse{
		ID:              item.ID,
		URL:             item.URL,
		Title:           item.Title,
		FavIconURL:      item.FavIconURL,
		WindowSnoozeID:  item.WindowSnoozeID,
		SourceWindowID:  item.SourceWindowID,
		OriginalGroupID: item.OriginalGroupID,
		Mode:            item.Mode.String(),
		CreatedAt:       item.CreatedAt,
		WakeAt:          item.WakeAt,
	}
}

func toSnoozedItemResponses(items []*domain.SnoozedItem) []SnoozedItemResponse {
	resp := make([]SnoozedItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toSnoozedItemResponse(item))
	}
	return resp
}
