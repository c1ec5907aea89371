package domain

import (
	"fmt"
	"time"
)

// RestorationMode selects the destination window when a snoozed tab wakes.
// It is a closed enumeration; consumers switch over it exhaustively rather
// than comparing strings.
type RestorationMode int

const (
	// RestoreOriginal reopens the tab in its source window, falling back to
	// the last-focused window if the source no longer exists.
	RestoreOriginal RestorationMode = iota
	// RestoreCurrent reopens the tab in the last-focused window.
	RestoreCurrent
	// RestoreNew leaves the destination unspecified so the browser allocates
	// a fresh window.
	RestoreNew
)

// String returns the wire form of the mode.
func (m RestorationMode) String() string {
	switch m {
	case RestoreOriginal:
		return "original"
	case RestoreCurrent:
		return "current"
	case RestoreNew:
		return "new"
	default:
		return fmt.Sprintf("RestorationMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RestorationMode) MarshalText() ([]byte, error) {
	switch m {
	case RestoreOriginal, RestoreCurrent, RestoreNew:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("unknown restoration mode %d", int(m))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RestorationMode) UnmarshalText(text []byte) error {
	parsed, err := ParseRestorationMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseRestorationMode parses the wire form of a mode.
func ParseRestorationMode(s string) (RestorationMode, error) {
	switch s {
	case "original", "":
		return RestoreOriginal, nil
	case "current":
		return RestoreCurrent, nil
	case "new":
		return RestoreNew, nil
	default:
		return RestoreOriginal, fmt.Errorf("unknown restoration mode %q", s)
	}
}

// SnoozedItem is the durable record of a tab closed with a scheduled future
// restoration. It is created on snooze, mutated only by reschedule, and
// removed by wake or delete. Exactly one armed one-shot timer exists per
// unresolved item; its name derives from the durable id so a restarted
// process can reattach (see SnoozeTimerName).
type SnoozedItem struct {
	CreatedAt       time.Time       `json:"created_at"`
	WakeAt          time.Time       `json:"wake_at"`
	ID              string          `json:"id"`
	URL             string          `json:"url"`
	Title           string          `json:"title"`
	FavIconURL      string          `json:"favicon_url,omitempty"`
	WindowSnoozeID  string          `json:"window_snooze_id,omitempty"` // Groups items snoozed together as a window
	SourceWindowID  int             `json:"source_window_id"`
	OriginalGroupID *int            `json:"original_group_id,omitempty"`
	Mode            RestorationMode `json:"restoration_mode"`
}

// Due reports whether the item's wake time has elapsed.
func (s *SnoozedItem) Due(now time.Time) bool {
	return !now.Before(s.WakeAt)
}

// TimerName returns the deterministic one-shot timer name for this item.
func (s *SnoozedItem) TimerName() string {
	return SnoozeTimerName(s.ID)
}

// SnoozeTimerName derives the timer name for a snoozed item's durable id.
func SnoozeTimerName(itemID string) string {
	return "wake:" + itemID
}

// WindowMetadata is the durable snapshot of a window's display properties,
// taken just before a window-snooze closes the window. It is keyed by the
// generated window-snooze id and deleted once restoration of that snooze
// completes, even on partial success.
type WindowMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	SnoozeID  string    `json:"snooze_id"`
	Left      int       `json:"left"`
	Top       int       `json:"top"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	State     string    `json:"state,omitempty"` // normal, maximized, fullscreen
}

// DefaultWindowMetadata synthesizes fallback display properties for a window
// snooze whose metadata record was lost. The snoozed items alone are enough
// to restore the window; only geometry degrades to defaults.
func DefaultWindowMetadata(snoozeID string) *WindowMetadata {
	return &WindowMetadata{
		CreatedAt: time.Now(),
		SnoozeID:  snoozeID,
		Width:     1280,
		Height:    800,
		State:     "normal",
	}
}
