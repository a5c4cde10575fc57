/*
2026 © Postgres.ai
*/

package s3270

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
)

// 3270 field attribute bits.
const (
	attrProtected  = 0x20
	attrDisplay    = 0x0c
	attrNonDisplay = 0x0c
)

var _ emulator.Screen = (*Screen)(nil)

// Screen defines a screen image read from the emulator buffer.
type Screen struct {
	width    int
	rows     []string
	fields   []emulator.Field
	changeID uint64
}

// Width implements emulator.Screen.
func (s *Screen) Width() int {
	return s.width
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

func (s *Screen) sameImage(other *Screen) bool {
	if other == nil || len(s.rows) != len(other.rows) || len(s.fields) != len(other.fields) {
		return false
	}

	for i := range s.rows {
		if s.rows[i] != other.rows[i] {
			return false
		}
	}

	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}

	return true
}

// cell defines a buffer position.
type cell struct {
	char       rune
	fieldStart bool
	attr       byte
}

// parseBuffer builds a screen from ReadBuffer(Ascii) data lines. Each line is a row of
// space-separated cells: a hex encoded character, SF(...) starting a field or SA(...) changing
// character attributes.
func parseBuffer(lines []string) (*Screen, error) {
	cells := make([]cell, 0, len(lines)*80)
	width := 0

	for rowIdx, line := range lines {
		tokens := strings.Fields(line)

		if rowIdx == 0 {
			width = len(tokens)
		} else if len(tokens) != width {
			return nil, errors.Errorf("row %d has %d cells, expected %d", rowIdx+1, len(tokens), width)
		}

		for _, token := range tokens {
			c, err := parseCell(token)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", rowIdx+1)
			}

			cells = append(cells, c)
		}
	}

	screen := &Screen{width: width}

	if width == 0 {
		return screen, nil
	}

	hidden := make([]bool, len(cells))
	screen.fields = collectFields(cells, width, hidden)

	for start := 0; start < len(cells); start += width {
		var sb strings.Builder

		for i := start; i < start+width; i++ {
			c := cells[i]

			if c.fieldStart || hidden[i] || c.char == 0 {
				sb.WriteByte(' ')
				continue
			}

			sb.WriteRune(c.char)
		}

		screen.rows = append(screen.rows, sb.String())
	}

	return screen, nil
}

// collectFields numbers fields in buffer order. Field data runs from the position after the
// attribute to the next attribute and wraps around the end of the buffer.
func collectFields(cells []cell, width int, hidden []bool) []emulator.Field {
	var starts []int

	for i, c := range cells {
		if c.fieldStart {
			starts = append(starts, i)
		}
	}

	fields := make([]emulator.Field, 0, len(starts))

	for n, start := range starts {
		end := starts[(n+1)%len(starts)]
		if end <= start {
			end += len(cells)
		}

		attr := cells[start].attr
		nonDisplay := attr&attrDisplay == attrNonDisplay

		var sb strings.Builder

		for pos := start + 1; pos < end; pos++ {
			idx := pos % len(cells)

			if nonDisplay {
				hidden[idx] = true
				continue
			}

			if ch := cells[idx].char; ch != 0 {
				sb.WriteRune(ch)
			} else {
				sb.WriteByte(' ')
			}
		}

		dataStart := (start + 1) % len(cells)

		fields = append(fields, emulator.Field{
			Number:    n + 1,
			Row:       dataStart/width + 1,
			Col:       dataStart%width + 1,
			Length:    end - start - 1,
			Protected: attr&attrProtected != 0,
			Value:     strings.TrimRight(sb.String(), " "),
		})
	}

	return fields
}

func parseCell(token string) (cell, error) {
	switch {
	case strings.HasPrefix(token, "SF(") && strings.HasSuffix(token, ")"):
		attr, err := fieldAttribute(token[3 : len(token)-1])
		if err != nil {
			return cell{}, err
		}

		return cell{fieldStart: true, attr: attr}, nil

	case strings.HasPrefix(token, "SA("):
		return cell{char: ' '}, nil
	}

	raw, err := hex.DecodeString(token)
	if err != nil {
		return cell{}, errors.Wrapf(err, "invalid cell %q", token)
	}

	text := []rune(string(raw))
	if len(text) != 1 {
		return cell{}, errors.Errorf("invalid cell %q", token)
	}

	if text[0] < ' ' {
		return cell{char: ' '}, nil
	}

	return cell{char: text[0]}, nil
}

// fieldAttribute reads the c0 (3270 field attribute) value of an SF order, e.g. "c0=e0,41=f2".
func fieldAttribute(orders string) (byte, error) {
	for _, order := range strings.Split(orders, ",") {
		key, value, ok := strings.Cut(order, "=")
		if !ok || key != "c0" {
			continue
		}

		attr, err := strconv.ParseUint(value, 16, 8)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid field attribute %q", orders)
		}

		return byte(attr), nil
	}

	return 0, nil
}
