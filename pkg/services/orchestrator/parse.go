/*
2026 © Postgres.ai
*/

package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
)

// ParseOutput extracts parse set fields from the raw output of a query.
// A field with a capture group yields the first group, otherwise the whole match.
// Fields without a match are omitted.
func ParseOutput(set *instruction.ParseSet, rawOutput string) map[string]interface{} {
	values := make(map[string]interface{}, len(set.Fields))

	for i := range set.Fields {
		field := &set.Fields[i]

		re := field.Pattern.Regexp()
		if re == nil {
			continue
		}

		if !field.Multiple {
			if match := re.FindStringSubmatch(rawOutput); match != nil {
				values[field.Name] = matchValue(match)
			}

			continue
		}

		matches := re.FindAllStringSubmatch(rawOutput, -1)
		if len(matches) == 0 {
			continue
		}

		list := make([]string, 0, len(matches))
		for _, match := range matches {
			list = append(list, matchValue(match))
		}

		values[field.Name] = list
	}

	return values
}

func matchValue(match []string) string {
	if len(match) > 1 {
		return strings.TrimSpace(match[1])
	}

	return strings.TrimSpace(match[0])
}

// parsedOutput builds the JSON document of a completed query. Parse set fields override captures of the same name.
func parsedOutput(captures map[string]string, fields map[string]interface{}) (string, error) {
	doc := make(map[string]interface{}, len(captures)+len(fields))

	for name, value := range captures {
		doc[name] = value
	}

	for name, value := range fields {
		doc[name] = value
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode parsed output")
	}

	return string(data), nil
}
