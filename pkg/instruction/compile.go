/*
2026 © Postgres.ai
*/

package instruction

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
)

// Compile validates the logon set and prepares its expressions.
func (s *LogonSet) Compile() error {
	if s.Name == "" {
		return errors.New("logon set name is required")
	}

	if s.Pool == "" {
		return errors.Errorf("logon set %q: credential pool is required", s.Name)
	}

	if s.MaxSessions < 0 {
		return errors.Errorf("logon set %q: maxSessions must not be negative", s.Name)
	}

	return errors.Wrapf(compileActions(s.Actions, map[string]struct{}{}), "logon set %q", s.Name)
}

// Compile validates the query set and prepares its expressions.
func (s *QuerySet) Compile() error {
	if s.Name == "" {
		return errors.New("query set name is required")
	}

	if len(s.Actions) == 0 {
		return errors.Errorf("query set %q has no actions", s.Name)
	}

	return errors.Wrapf(compileActions(s.Actions, map[string]struct{}{}), "query set %q", s.Name)
}

// Compile validates the parse set and prepares its expressions.
func (s *ParseSet) Compile() error {
	if s.Name == "" {
		return errors.New("parse set name is required")
	}

	for i := range s.Fields {
		field := &s.Fields[i]

		if field.Name == "" {
			return errors.Errorf("parse set %q: field %d has no name", s.Name, i)
		}

		if field.Pattern.IsEmpty() {
			return errors.Errorf("parse set %q: field %q has no pattern", s.Name, field.Name)
		}

		if err := field.Pattern.compile(); err != nil {
			return errors.Wrapf(err, "parse set %q: field %q", s.Name, field.Name)
		}
	}

	return nil
}

func compileActions(actions []ProcessAction, seen map[string]struct{}) error {
	for i := range actions {
		if err := actions[i].compile(seen); err != nil {
			return err
		}
	}

	return nil
}

func (a *ProcessAction) compile(seen map[string]struct{}) error {
	if a.Identifier == "" {
		return errors.New("action identifier is required")
	}

	if _, ok := seen[a.Identifier]; ok {
		return errors.Errorf("duplicate action identifier %q", a.Identifier)
	}

	seen[a.Identifier] = struct{}{}

	if strings.TrimSpace(a.EnabledWhen) != "" {
		guard, err := ParseGuard(a.EnabledWhen)
		if err != nil {
			return errors.Wrapf(err, "action %q", a.Identifier)
		}

		a.guard = guard
	}

	for _, marks := range [][]ScreenIdentificationMark{a.ErrorMarks, a.Marks, a.PostNavigationMarks} {
		if err := compileMarks(marks); err != nil {
			return errors.Wrapf(err, "action %q", a.Identifier)
		}
	}

	for i := range a.Captures {
		capture := &a.Captures[i]

		if capture.Identifier == "" {
			return errors.Errorf("action %q: capture %d has no identifier", a.Identifier, i)
		}

		if err := capture.Area.Validate(); err != nil {
			return errors.Wrapf(err, "action %q: capture %q", a.Identifier, capture.Identifier)
		}

		if err := capture.Pattern.compile(); err != nil {
			return errors.Wrapf(err, "action %q: capture %q", a.Identifier, capture.Identifier)
		}
	}

	for _, input := range a.Inputs {
		if err := input.Position.Validate(); err != nil {
			return errors.Wrapf(err, "action %q: input %q", a.Identifier, input.Identifier)
		}
	}

	if a.Navigation != nil {
		if _, err := emulator.ParseKey(a.Navigation.Key); err != nil {
			return errors.Wrapf(err, "action %q", a.Identifier)
		}

		if a.Navigation.Refreshes < 0 {
			return errors.Errorf("action %q: refreshes must not be negative", a.Identifier)
		}
	}

	if a.Success != nil {
		if err := compileMarks(a.Success.Marks); err != nil {
			return errors.Wrapf(err, "action %q: success condition", a.Identifier)
		}
	}

	return compileActions(a.Children, seen)
}

func compileMarks(marks []ScreenIdentificationMark) error {
	for i := range marks {
		mark := &marks[i]

		if mark.Identifier == "" {
			return errors.Errorf("mark %d has no identifier", i)
		}

		if mark.Pattern.IsEmpty() {
			return errors.Errorf("mark %q has no pattern", mark.Identifier)
		}

		if err := mark.Area.Validate(); err != nil {
			return errors.Wrapf(err, "mark %q", mark.Identifier)
		}

		if err := mark.Pattern.compile(); err != nil {
			return errors.Wrapf(err, "mark %q", mark.Identifier)
		}
	}

	return nil
}

// NewPattern creates a compiled pattern.
func NewPattern(regex, options string) (Pattern, error) {
	p := Pattern{Regex: regex, Options: options}

	if err := p.compile(); err != nil {
		return Pattern{}, err
	}

	return p, nil
}

// MustPattern is like NewPattern but panics if the expression cannot be compiled.
func MustPattern(regex, options string) Pattern {
	p, err := NewPattern(regex, options)
	if err != nil {
		panic(err)
	}

	return p
}

func (p *Pattern) compile() error {
	if p.IsEmpty() {
		return nil
	}

	flags, err := regexFlags(p.Options)
	if err != nil {
		return err
	}

	re, err := regexp.Compile(flags + p.Regex)
	if err != nil {
		return errors.Wrapf(err, "invalid pattern %q", p.Regex)
	}

	p.re = re

	return nil
}

// regexFlags converts options like "i", "ms" or "IgnoreCase, Multiline" to an inline flag group.
func regexFlags(options string) (string, error) {
	options = strings.TrimSpace(options)
	if options == "" {
		return "", nil
	}

	set := map[rune]bool{}

	for _, part := range strings.FieldsFunc(options, func(r rune) bool { return r == ',' || r == '|' || r == ' ' }) {
		switch strings.ToLower(part) {
		case "ignorecase":
			set['i'] = true
		case "multiline":
			set['m'] = true
		case "singleline":
			set['s'] = true
		case "none":
		default:
			for _, r := range part {
				if r != 'i' && r != 'm' && r != 's' {
					return "", errors.Errorf("unknown pattern option %q", part)
				}

				set[r] = true
			}
		}
	}

	if len(set) == 0 {
		return "", nil
	}

	var sb strings.Builder

	sb.WriteString("(?")

	for _, r := range "ims" {
		if set[r] {
			sb.WriteRune(r)
		}
	}

	sb.WriteString(")")

	return sb.String(), nil
}
