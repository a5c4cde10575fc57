/*
2026 © Postgres.ai
*/

package instruction

import (
	"time"

	"github.com/pkg/errors"
)

// Duration defines a time.Duration read from strings like "1500ms" or "2s".
// Bare integers are treated as milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ms int64
	if err := unmarshal(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	var raw string
	if err := unmarshal(&raw); err != nil {
		return errors.Wrap(err, "failed to read a duration")
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", raw)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
