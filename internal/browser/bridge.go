package browser

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Command names understood by the extension side of the bridge.
const (
	methodTabsQuery        = "tabs.query"
	methodTabsCreate       = "tabs.create"
	methodTabsRemove       = "tabs.remove"
	methodTabsMove         = "tabs.move"
	methodTabsGroup        = "tabs.group"
	methodGroupsQuery      = "tabGroups.query"
	methodGroupsUpdate     = "tabGroups.update"
	methodWindowsCreate    = "windows.create"
	methodWindowsUpdate    = "windows.update"
	methodWindowsGet       = "windows.get"
	methodWindowsLastFocus = "windows.lastFocused"
)

// errNotFoundCode is the error code the extension reports for a missing
// window, tab, or group.
const errNotFoundCode = "not_found"

// Bridge drives the browser through the companion extension: the extension
// opens a WebSocket to the server, and the server issues JSON commands with
// id correlation over that single connection. Only one extension connection
// is held at a time; a newer connection replaces the older one.
//
// Bridge implements Controller. Calls made while no extension is connected
// fail fast with ErrNoBrowser.
type Bridge struct {
	logger         *slog.Logger
	callTimeout    time.Duration
	allowedOrigins []string
	upgrader       websocket.Upgrader

	nextID atomic.Int64

	mu        sync.Mutex
	conn      *websocket.Conn
	onConnect func()
	writeMu   sync.Mutex
	pending   map[int64]chan wireResponse
}

// NewBridge creates a bridge. allowedOrigins lists the extension origins
// permitted to connect; empty allows only origin-less and localhost clients.
func NewBridge(logger *slog.Logger, callTimeout time.Duration, allowedOrigins []string) *Bridge {
	b := &Bridge{
		logger:         logger,
		callTimeout:    callTimeout,
		allowedOrigins: allowedOrigins,
		pending:        make(map[int64]chan wireResponse),
	}
	b.upgrader = websocket.Upgrader{
		CheckOrigin: b.checkOrigin,
	}
	return b
}

// Connected reports whether an extension is currently attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// SetOnConnect registers a callback invoked on each new extension
// connection, for state that must be reconciled against the live browser.
func (b *Bridge) SetOnConnect(fn func()) {
	b.mu.Lock()
	b.onConnect = fn
	b.mu.Unlock()
}

// HandleConnection upgrades an HTTP request to the bridge WebSocket and runs
// its read loop until the connection drops. It blocks for the lifetime of
// the connection.
func (b *Bridge) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("bridge upgrade failed", "error", err)
		return
	}

	b.mu.Lock()
	if b.conn != nil {
		// Last connection wins; the stale extension reconnects on its own.
		_ = b.conn.Close()
		b.failPendingLocked(fmt.Errorf("replaced by newer connection"))
	}
	b.conn = conn
	onConnect := b.onConnect
	b.mu.Unlock()

	b.logger.Info("browser extension connected", "remote", r.RemoteAddr)
	if onConnect != nil {
		go onConnect()
	}
	b.readLoop(conn)
}

// Close drops the current connection, failing all in-flight calls.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		b.failPendingLocked(ErrNoBrowser)
		return err
	}
	return nil
}

func (b *Bridge) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(b.allowedOrigins) > 0 {
		return slices.Contains(b.allowedOrigins, origin)
	}
	return origin == "http://localhost" || origin == "http://127.0.0.1"
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			if b.conn == conn {
				b.conn = nil
				b.failPendingLocked(ErrNoBrowser)
				b.logger.Info("browser extension disconnected")
			}
			b.mu.Unlock()
			return
		}

		var resp wireResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			b.logger.Warn("bridge received malformed message", "error", err)
			continue
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// failPendingLocked resolves every in-flight call with err. Caller holds mu.
func (b *Bridge) failPendingLocked(err error) {
	for id, ch := range b.pending {
		delete(b.pending, id)
		ch <- wireResponse{Error: &wireError{Message: err.Error()}}
	}
}

type wireCommand struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type wireResponse struct {
	ID     int64          `json:"id"`
	Result jsontext.Value `json:"result,omitempty"`
	Error  *wireError     `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// call issues one command and decodes its result into out (which may be nil
// for commands without a payload).
func (b *Bridge) call(ctx context.Context, method string, params, out any) error {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return ErrNoBrowser
	}
	id := b.nextID.Add(1)
	ch := make(chan wireResponse, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	data, err := json.Marshal(wireCommand{ID: id, Method: method, Params: params})
	if err != nil {
		b.abandon(id)
		return fmt.Errorf("marshal %s command: %w", method, err)
	}

	b.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	b.writeMu.Unlock()
	if err != nil {
		b.abandon(id)
		return fmt.Errorf("send %s command: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			if resp.Error.Code == errNotFoundCode {
				return fmt.Errorf("%s: %w", method, ErrNotFound)
			}
			return fmt.Errorf("%s: %s", method, resp.Error.Message)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		b.abandon(id)
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (b *Bridge) abandon(id int64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// Controller implementation.

type queryTabsParams struct {
	WindowID *int `json:"window_id,omitempty"`
}

// QueryTabs implements Controller.
func (b *Bridge) QueryTabs(ctx context.Context, windowID *int) ([]Tab, error) {
	var tabs []Tab
	if err := b.call(ctx, methodTabsQuery, queryTabsParams{WindowID: windowID}, &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

type windowIDParams struct {
	WindowID int `json:"window_id"`
}

// QueryGroups implements Controller.
func (b *Bridge) QueryGroups(ctx context.Context, windowID int) ([]Group, error) {
	var groups []Group
	if err := b.call(ctx, methodGroupsQuery, windowIDParams{WindowID: windowID}, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateWindow implements Controller.
func (b *Bridge) CreateWindow(ctx context.Context, props CreateWindowProps) (*Window, error) {
	var w Window
	if err := b.call(ctx, methodWindowsCreate, props, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateTab implements Controller.
func (b *Bridge) CreateTab(ctx context.Context, props CreateTabProps) (*Tab, error) {
	var t Tab
	if err := b.call(ctx, methodTabsCreate, props, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type removeTabsParams struct {
	TabIDs []int `json:"tab_ids"`
}

// RemoveTabs implements Controller.
func (b *Bridge) RemoveTabs(ctx context.Context, tabIDs []int) error {
	return b.call(ctx, methodTabsRemove, removeTabsParams{TabIDs: tabIDs}, nil)
}

type moveTabParams struct {
	TabID    int `json:"tab_id"`
	WindowID int `json:"window_id"`
	Index    int `json:"index"`
}

// MoveTab implements Controller.
func (b *Bridge) MoveTab(ctx context.Context, tabID, windowID, index int) error {
	return b.call(ctx, methodTabsMove, moveTabParams{TabID: tabID, WindowID: windowID, Index: index}, nil)
}

type groupTabsResult struct {
	GroupID int `json:"group_id"`
}

// GroupTabs implements Controller.
func (b *Bridge) GroupTabs(ctx context.Context, props GroupProps) (int, error) {
	var res groupTabsResult
	if err := b.call(ctx, methodTabsGroup, props, &res); err != nil {
		return 0, err
	}
	return res.GroupID, nil
}

type updateGroupParams struct {
	GroupID int              `json:"group_id"`
	Props   UpdateGroupProps `json:"props"`
}

// UpdateGroup implements Controller.
func (b *Bridge) UpdateGroup(ctx context.Context, groupID int, props UpdateGroupProps) error {
	return b.call(ctx, methodGroupsUpdate, updateGroupParams{GroupID: groupID, Props: props}, nil)
}

type updateWindowParams struct {
	WindowID int               `json:"window_id"`
	Props    UpdateWindowProps `json:"props"`
}

// UpdateWindow implements Controller.
func (b *Bridge) UpdateWindow(ctx context.Context, windowID int, props UpdateWindowProps) error {
	return b.call(ctx, methodWindowsUpdate, updateWindowParams{WindowID: windowID, Props: props}, nil)
}

// GetWindow implements Controller.
func (b *Bridge) GetWindow(ctx context.Context, windowID int) (*Window, error) {
	var w Window
	if err := b.call(ctx, methodWindowsGet, windowIDParams{WindowID: windowID}, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// LastFocusedWindow implements Controller.
func (b *Bridge) LastFocusedWindow(ctx context.Context) (*Window, error) {
	var w Window
	if err := b.call(ctx, methodWindowsLastFocus, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

var _ Controller = (*Bridge)(nil)
