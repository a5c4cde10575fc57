/*
2026 © Postgres.ai
*/

package instruction

import (
	"fmt"

	"github.com/pkg/errors"
)

// AreaMode defines an addressing mode of a screen area.
type AreaMode int

// Addressing modes.
const (
	AreaFullScreen AreaMode = iota
	AreaField
	AreaRect
)

// Rect defines a screen rectangle. Rows and columns are 1-based and inclusive.
type Rect struct {
	StartRow int `yaml:"startRow"`
	StartCol int `yaml:"startCol"`
	EndRow   int `yaml:"endRow"`
	EndCol   int `yaml:"endCol"`
}

// ScreenArea addresses either the full screen, a field number or a rectangle.
// The zero value addresses the full screen.
type ScreenArea struct {
	FullScreen bool  `yaml:"fullScreen"`
	Field      *int  `yaml:"field"`
	Rect       *Rect `yaml:"rect"`
}

// Mode returns the active addressing mode.
func (a ScreenArea) Mode() AreaMode {
	switch {
	case a.Field != nil:
		return AreaField
	case a.Rect != nil:
		return AreaRect
	default:
		return AreaFullScreen
	}
}

// Validate checks that exactly one addressing mode is active.
func (a ScreenArea) Validate() error {
	modes := 0

	if a.FullScreen {
		modes++
	}

	if a.Field != nil {
		modes++

		if *a.Field < 1 {
			return errors.Errorf("field number must be positive, got %d", *a.Field)
		}
	}

	if a.Rect != nil {
		modes++

		r := a.Rect
		if r.StartRow < 1 || r.StartCol < 1 || r.EndRow < r.StartRow || r.EndCol < r.StartCol {
			return errors.Errorf("invalid rectangle %s", a)
		}
	}

	if modes > 1 {
		return errors.New("screen area must use exactly one addressing mode")
	}

	return nil
}

// String returns a readable form of the area.
func (a ScreenArea) String() string {
	switch a.Mode() {
	case AreaField:
		return fmt.Sprintf("field %d", *a.Field)
	case AreaRect:
		return fmt.Sprintf("(%d,%d)-(%d,%d)", a.Rect.StartRow, a.Rect.StartCol, a.Rect.EndRow, a.Rect.EndCol)
	default:
		return "full screen"
	}
}

// ScreenPosition addresses an input location by field number or by row and column.
type ScreenPosition struct {
	Field *int `yaml:"field"`
	Row   int  `yaml:"row"`
	Col   int  `yaml:"col"`
}

// Validate checks that exactly one addressing mode is active.
func (p ScreenPosition) Validate() error {
	hasCell := p.Row > 0 || p.Col > 0

	switch {
	case p.Field != nil && hasCell:
		return errors.New("screen position must use either a field number or a row and column")
	case p.Field != nil && *p.Field < 1:
		return errors.Errorf("field number must be positive, got %d", *p.Field)
	case p.Field == nil && (p.Row < 1 || p.Col < 1):
		return errors.Errorf("invalid screen position (%d,%d)", p.Row, p.Col)
	}

	return nil
}

// String returns a readable form of the position.
func (p ScreenPosition) String() string {
	if p.Field != nil {
		return fmt.Sprintf("field %d", *p.Field)
	}

	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}
