/*
2026 © Postgres.ai
*/

// Package instruction provides declarative instruction sets which drive terminal sessions.
package instruction

import (
	"regexp"
)

// ProcessAction defines a node of an instruction set tree.
type ProcessAction struct {
	Identifier          string                     `yaml:"id"`
	Core                *bool                      `yaml:"core"`
	NoData              bool                       `yaml:"noData"`
	EnabledWhen         string                     `yaml:"enabledWhen"`
	Captures            []ScreenCaptureDataPoint   `yaml:"captures"`
	ErrorMarks          []ScreenIdentificationMark `yaml:"errorMarks"`
	Marks               []ScreenIdentificationMark `yaml:"marks"`
	PostNavigationMarks []ScreenIdentificationMark `yaml:"postNavigationMarks"`
	Inputs              []ScreenInput              `yaml:"inputs"`
	Navigation          *NavigationAction          `yaml:"navigation"`
	Success             *SuccessCondition          `yaml:"success"`
	Children            []ProcessAction            `yaml:"children"`

	guard *Guard
}

// IsCore reports whether a failure of the action fails its parent. Actions are core unless stated otherwise.
func (a *ProcessAction) IsCore() bool {
	return a.Core == nil || *a.Core
}

// Guard returns the compiled enabledWhen expression, nil if the action is always enabled.
func (a *ProcessAction) Guard() *Guard {
	return a.guard
}

// Pattern defines a regular expression with options.
type Pattern struct {
	Regex   string `yaml:"regex"`
	Options string `yaml:"options"`

	re *regexp.Regexp
}

// Regexp returns the compiled expression, nil for an empty pattern.
func (p *Pattern) Regexp() *regexp.Regexp {
	return p.re
}

// IsEmpty checks if no expression is configured.
func (p *Pattern) IsEmpty() bool {
	return p.Regex == ""
}

// ScreenIdentificationMark defines a named predicate matched against a screen area.
type ScreenIdentificationMark struct {
	Identifier       string     `yaml:"id"`
	Pattern          Pattern    `yaml:",inline"`
	Area             ScreenArea `yaml:"area"`
	WaitPeriod       Duration   `yaml:"waitPeriod"`
	ExceptIfNotFound bool       `yaml:"exceptIfNotFound"`
}

// ScreenCaptureDataPoint defines a value extracted from a screen area.
type ScreenCaptureDataPoint struct {
	Identifier       string     `yaml:"id"`
	Area             ScreenArea `yaml:"area"`
	Pattern          Pattern    `yaml:",inline"`
	ExceptIfNotFound bool       `yaml:"exceptIfNotFound"`
}

// ScreenInput defines a value written to a screen position. Value may contain [#Name#] placeholders.
type ScreenInput struct {
	Identifier string         `yaml:"id"`
	Position   ScreenPosition `yaml:"position"`
	Value      string         `yaml:"value"`
}

// NavigationAction defines a key command and the waits that follow it.
type NavigationAction struct {
	Key         string   `yaml:"key"`
	Timeout     Duration `yaml:"timeout"`
	Wait        Duration `yaml:"wait"`
	Refreshes   int      `yaml:"refreshes"`
	RefreshWait Duration `yaml:"refreshWait"`
}

// SuccessCondition defines a policy evaluated after navigation.
type SuccessCondition struct {
	LockCredentialOnFailure bool                       `yaml:"lockCredentialOnFailure"`
	ResetSessionOnFailure   bool                       `yaml:"resetSessionOnFailure"`
	Marks                   []ScreenIdentificationMark `yaml:"marks"`
}

// LogonSet defines how to establish an authenticated session.
type LogonSet struct {
	Name        string          `yaml:"name"`
	Pool        string          `yaml:"pool"`
	MaxSessions int             `yaml:"maxSessions"`
	Actions     []ProcessAction `yaml:"actions"`
}

// QuerySet defines how to run a query on an authenticated session.
type QuerySet struct {
	Name    string          `yaml:"name"`
	Actions []ProcessAction `yaml:"actions"`
}

// ParseField defines a value extracted from the raw output of a query.
type ParseField struct {
	Name     string  `yaml:"name"`
	Pattern  Pattern `yaml:",inline"`
	Multiple bool    `yaml:"multiple"`
}

// ParseSet defines how to turn the raw output of a query into named values.
type ParseSet struct {
	Name   string       `yaml:"name"`
	Fields []ParseField `yaml:"fields"`
}
