package browser

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeExtension connects to the bridge endpoint and answers commands with
// the provided handler until the connection closes.
func fakeExtension(t *testing.T, url string, handle func(method string, params jsontext.Value) (any, *wireError)) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var cmd struct {
				ID     int64          `json:"id"`
				Method string         `json:"method"`
				Params jsontext.Value `json:"params"`
			}
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}

			result, wireErr := handle(cmd.Method, cmd.Params)
			resp := map[string]any{"id": cmd.ID}
			if wireErr != nil {
				resp["error"] = wireErr
			} else if result != nil {
				resp["result"] = result
			}
			out, _ := json.Marshal(resp)
			_ = conn.WriteMessage(websocket.TextMessage, out)
		}
	}()

	return conn
}

func newTestBridge(t *testing.T, timeout time.Duration) (*Bridge, string) {
	t.Helper()

	b := NewBridge(testLogger(), timeout, nil)
	srv := httptest.NewServer(http.HandlerFunc(b.HandleConnection))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return b, url
}

func waitConnected(t *testing.T, b *Bridge) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !b.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("bridge never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBridge_NoBrowser(t *testing.T) {
	b := NewBridge(testLogger(), time.Second, nil)

	_, err := b.QueryTabs(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoBrowser)
}

func TestBridge_QueryTabs(t *testing.T) {
	b, url := newTestBridge(t, 2*time.Second)

	conn := fakeExtension(t, url, func(method string, _ jsontext.Value) (any, *wireError) {
		require.Equal(t, methodTabsQuery, method)
		return []Tab{{ID: 7, WindowID: 1, GroupID: NoGroup, URL: "https://a.test"}}, nil
	})
	defer conn.Close()
	waitConnected(t, b)

	tabs, err := b.QueryTabs(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, 7, tabs[0].ID)
	assert.Equal(t, "https://a.test", tabs[0].URL)
}

func TestBridge_NotFoundMapping(t *testing.T) {
	b, url := newTestBridge(t, 2*time.Second)

	conn := fakeExtension(t, url, func(string, jsontext.Value) (any, *wireError) {
		return nil, &wireError{Code: errNotFoundCode, Message: "no such window"}
	})
	defer conn.Close()
	waitConnected(t, b)

	_, err := b.GetWindow(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBridge_CallTimeout(t *testing.T) {
	b, url := newTestBridge(t, 50*time.Millisecond)

	// Extension that never answers.
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitConnected(t, b)

	_, err = b.QueryTabs(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridge_GroupTabsResult(t *testing.T) {
	b, url := newTestBridge(t, 2*time.Second)

	conn := fakeExtension(t, url, func(method string, _ jsontext.Value) (any, *wireError) {
		require.Equal(t, methodTabsGroup, method)
		return groupTabsResult{GroupID: 512}, nil
	})
	defer conn.Close()
	waitConnected(t, b)

	groupID, err := b.GroupTabs(context.Background(), GroupProps{TabIDs: []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 512, groupID)
}
