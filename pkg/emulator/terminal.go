/*
2026 © Postgres.ai
*/

// Package emulator provides the terminal collaborator surface and the gate serializing access to it.
package emulator

import (
	"context"
	"time"
)

// Field defines a 3270 field of the current screen. Rows and columns are 1-based.
type Field struct {
	Number    int
	Row       int
	Col       int
	Length    int
	Protected bool
	Value     string
}

// Screen defines the current screen image of a terminal.
type Screen interface {
	Width() int
	Height() int
	Rows() []string
	Fields() []Field
	// ChangeID changes every time the host updates the screen.
	ChangeID() uint64
}

// Terminal defines a live terminal connection to a host.
type Terminal interface {
	Connect(ctx context.Context) error
	SendKey(ctx context.Context, key Key, timeout time.Duration) (bool, error)
	SetField(fieldNumber int, value string) error
	SetCursor(row, col int) error
	SendText(value string) error
	Refresh(ctx context.Context, wait, timeout time.Duration) (bool, error)
	Screen() Screen
	Close() error
}

// Dialer creates terminals which are not connected yet.
type Dialer interface {
	Dial(ctx context.Context) (Terminal, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context) (Terminal, error)

// Dial calls f.
func (f DialFunc) Dial(ctx context.Context) (Terminal, error) {
	return f(ctx)
}

// FieldByNumber finds a field of the screen.
func FieldByNumber(screen Screen, number int) (Field, bool) {
	for _, field := range screen.Fields() {
		if field.Number == number {
			return field, true
		}
	}

	return Field{}, false
}
