/*
2026 © Postgres.ai
*/

package emulator

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Key defines an AID or editing key sent to the host.
type Key string

// Supported keys. Program function and program attention keys are built with PF and PA.
const (
	KeyEnter   Key = "Enter"
	KeyClear   Key = "Clear"
	KeyTab     Key = "Tab"
	KeyBackTab Key = "BackTab"
	KeyHome    Key = "Home"
	KeyReset   Key = "Reset"
)

const (
	maxPF = 24
	maxPA = 3
)

var namedKeys = map[string]Key{
	"ENTER":   KeyEnter,
	"CLEAR":   KeyClear,
	"TAB":     KeyTab,
	"BACKTAB": KeyBackTab,
	"HOME":    KeyHome,
	"RESET":   KeyReset,
}

// PF returns a program function key.
func PF(n int) Key {
	return Key("PF" + strconv.Itoa(n))
}

// PA returns a program attention key.
func PA(n int) Key {
	return Key("PA" + strconv.Itoa(n))
}

// ParseKey converts a key name like "enter", "PF3" or "pa1" to a Key.
func ParseKey(name string) (Key, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))

	if key, ok := namedKeys[normalized]; ok {
		return key, nil
	}

	for prefix, limit := range map[string]int{"PF": maxPF, "PA": maxPA} {
		if !strings.HasPrefix(normalized, prefix) {
			continue
		}

		n, err := strconv.Atoi(strings.Trim(normalized[len(prefix):], "()"))
		if err != nil || n < 1 || n > limit {
			return "", errors.Errorf("invalid key %q", name)
		}

		return Key(prefix + strconv.Itoa(n)), nil
	}

	return "", errors.Errorf("unknown key %q", name)
}

// Function splits a key into an action name and its numeric argument, e.g. PF3 -> ("PF", 3).
// The argument is zero for named keys.
func (k Key) Function() (string, int) {
	s := string(k)

	for _, prefix := range []string{"PF", "PA"} {
		if strings.HasPrefix(s, prefix) {
			n, _ := strconv.Atoi(s[len(prefix):])
			return prefix, n
		}
	}

	return s, 0
}

// IsAID checks if the key transmits the screen to the host.
func (k Key) IsAID() bool {
	switch k {
	case KeyTab, KeyBackTab, KeyHome, KeyReset:
		return false
	}

	return true
}
