/*
2026 © Postgres.ai
*/

// Package emulatortest provides a scripted in-memory terminal for tests.
package emulatortest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
)

// Screen defines a static screen image.
type Screen struct {
	rows     []string
	fields   []emulator.Field
	changeID uint64
}

// NewScreen creates a screen from its rows.
func NewScreen(rows ...string) *Screen {
	return &Screen{rows: rows}
}

// WithField appends a field to the screen. Fields are numbered in the order they are added.
func (s *Screen) WithField(row, col, length int, protected bool, value string) *Screen {
	s.fields = append(s.fields, emulator.Field{
		Number:    len(s.fields) + 1,
		Row:       row,
		Col:       col,
		Length:    length,
		Protected: protected,
		Value:     value,
	})

	return s
}

// Width implements emulator.Screen.
func (s *Screen) Width() int {
	width := 0

	for _, row := range s.rows {
		if len(row) > width {
			width = len(row)
		}
	}

	return width
}

// Height implements emulator.Screen.
func (s *Screen) Height() int {
	return len(s.rows)
}

// Rows implements emulator.Screen.
func (s *Screen) Rows() []string {
	return append([]string(nil), s.rows...)
}

// Fields implements emulator.Screen.
func (s *Screen) Fields() []emulator.Field {
	return append([]emulator.Field(nil), s.fields...)
}

// ChangeID implements emulator.Screen.
func (s *Screen) ChangeID() uint64 {
	return s.changeID
}

func (s *Screen) clone(changeID uint64) *Screen {
	return &Screen{
		rows:     append([]string(nil), s.rows...),
		fields:   append([]emulator.Field(nil), s.fields...),
		changeID: changeID,
	}
}

// Input records a value written by the client.
type Input struct {
	Field int
	Row   int
	Col   int
	Value string
}

// Terminal defines a scripted terminal. Keys move it between screens registered with OnKey.
type Terminal struct {
	mu sync.Mutex

	screen      *Screen
	transitions map[emulator.Key]*Screen
	refreshes   []*Screen
	changes     uint64
	cursorRow   int
	cursorCol   int

	keys      []emulator.Key
	inputs    []Input
	connected bool
	closed    bool

	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// StuckKeys lists keys the host never answers, SendKey reports a timeout for them.
	StuckKeys map[emulator.Key]bool
}

// New creates a terminal showing the initial screen.
func New(initial *Screen) *Terminal {
	t := &Terminal{
		transitions: make(map[emulator.Key]*Screen),
		StuckKeys:   make(map[emulator.Key]bool),
	}

	t.show(initial)

	return t
}

// OnKey makes the terminal show next after key is sent.
func (t *Terminal) OnKey(key emulator.Key, next *Screen) *Terminal {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transitions[key] = next

	return t
}

// OnRefresh queues screens delivered by successive refreshes.
func (t *Terminal) OnRefresh(screens ...*Screen) *Terminal {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refreshes = append(t.refreshes, screens...)

	return t
}

// Show replaces the current screen.
func (t *Terminal) Show(screen *Screen) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.show(screen)
}

func (t *Terminal) show(screen *Screen) {
	t.changes++
	t.screen = screen.clone(t.changes)
}

// Keys returns keys sent so far.
func (t *Terminal) Keys() []emulator.Key {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]emulator.Key(nil), t.keys...)
}

// Inputs returns values written so far.
func (t *Terminal) Inputs() []Input {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Input(nil), t.inputs...)
}

// IsConnected reports whether Connect succeeded.
func (t *Terminal) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.connected
}

// IsClosed reports whether Close was called.
func (t *Terminal) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// Connect implements emulator.Terminal.
func (t *Terminal) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ConnectErr != nil {
		return t.ConnectErr
	}

	t.connected = true

	return nil
}

// SendKey implements emulator.Terminal.
func (t *Terminal) SendKey(ctx context.Context, key emulator.Key, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, errors.New("terminal is closed")
	}

	t.keys = append(t.keys, key)

	if t.StuckKeys[key] {
		return false, nil
	}

	if next, ok := t.transitions[key]; ok {
		t.show(next)
	}

	return true, nil
}

// SetField implements emulator.Terminal.
func (t *Terminal) SetField(fieldNumber int, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, field := range t.screen.fields {
		if field.Number != fieldNumber {
			continue
		}

		if field.Protected {
			return errors.Errorf("field %d is protected", fieldNumber)
		}

		t.screen.fields[i].Value = value
		t.inputs = append(t.inputs, Input{Field: fieldNumber, Value: value})

		return nil
	}

	return errors.Errorf("field %d not found", fieldNumber)
}

// SetCursor implements emulator.Terminal.
func (t *Terminal) SetCursor(row, col int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row < 1 || col < 1 || row > t.screen.Height() {
		return errors.Errorf("cursor position (%d,%d) is out of screen", row, col)
	}

	t.cursorRow, t.cursorCol = row, col

	return nil
}

// SendText implements emulator.Terminal. The text overwrites the current row at the cursor.
func (t *Terminal) SendText(value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cursorRow < 1 {
		return errors.New("cursor is not set")
	}

	row := t.screen.rows[t.cursorRow-1]
	if pad := t.cursorCol - 1 + len(value) - len(row); pad > 0 {
		row += strings.Repeat(" ", pad)
	}

	t.screen.rows[t.cursorRow-1] = row[:t.cursorCol-1] + value + row[t.cursorCol-1+len(value):]
	t.inputs = append(t.inputs, Input{Row: t.cursorRow, Col: t.cursorCol, Value: value})
	t.cursorCol += len(value)

	return nil
}

// Refresh implements emulator.Terminal. A queued screen is shown immediately,
// otherwise Refresh sleeps for the shorter of wait and timeout and reports no change.
func (t *Terminal) Refresh(ctx context.Context, wait, timeout time.Duration) (bool, error) {
	t.mu.Lock()

	if len(t.refreshes) > 0 {
		t.show(t.refreshes[0])
		t.refreshes = t.refreshes[1:]
		t.mu.Unlock()

		return true, nil
	}

	t.mu.Unlock()

	pause := wait
	if timeout > 0 && (pause <= 0 || timeout < pause) {
		pause = timeout
	}

	if pause <= 0 {
		return false, ctx.Err()
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return false, nil
	}
}

// Screen implements emulator.Terminal.
func (t *Terminal) Screen() emulator.Screen {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.clone(t.screen.changeID)
}

// Close implements emulator.Terminal.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.connected = false

	return nil
}
