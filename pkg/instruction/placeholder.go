/*
2026 © Postgres.ai
*/

package instruction

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var placeholderRegex = regexp.MustCompile(`\[#([A-Za-z0-9_.-]+)#\]`)

// Placeholders returns names referenced by [#Name#] placeholders in order of appearance.
func Placeholders(s string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(s, -1)
	names := make([]string, 0, len(matches))

	for _, m := range matches {
		names = append(names, m[1])
	}

	return names
}

// Substitute replaces [#Name#] placeholders with resolved values.
func Substitute(s string, lookup Lookup) (string, error) {
	var missing []string

	result := placeholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]

		value, ok := lookup(name)
		if !ok {
			missing = append(missing, name)
			return match
		}

		return value
	})

	if len(missing) > 0 {
		return "", errors.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
	}

	return result, nil
}
