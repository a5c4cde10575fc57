/*
2026 © Postgres.ai
*/

package interpreter

import (
	"context"
	"strings"
	"sync"
	"time"

	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/screen"
)

// Escalator applies success condition policies outside of the terminal.
type Escalator interface {
	// RevokeCredential locks out the credential used by the session.
	RevokeCredential(ctx context.Context) error
	// ResetSession marks the session for teardown instead of reuse.
	ResetSession(ctx context.Context) error
}

// RunContext holds the state of one instruction set run.
type RunContext struct {
	RequestID          string
	SessionID          string
	Credential         string
	CallingApplication string
	Tags               []string
	Escalator          Escalator

	// Resolve is consulted for placeholders which are neither parameters nor captures.
	Resolve instruction.Lookup

	mu           sync.Mutex
	values       map[string]string
	captures     map[string]string
	used         map[string]struct{}
	transactions []models.TransactionData
	snapshots    []screen.Snapshot
	noData       bool
}

// NewRunContext creates a run context seeded with parameter values.
func NewRunContext(values map[string]string) *RunContext {
	rc := &RunContext{
		values:   make(map[string]string, len(values)),
		captures: make(map[string]string),
		used:     make(map[string]struct{}),
	}

	for name, value := range values {
		rc.values[name] = value
	}

	return rc
}

// Lookup resolves a name against parameters, captures and the fallback resolver.
func (rc *RunContext) Lookup(name string) (string, bool) {
	rc.mu.Lock()
	value, ok := rc.values[name]
	rc.mu.Unlock()

	if ok {
		return value, true
	}

	if rc.Resolve != nil {
		return rc.Resolve(name)
	}

	return "", false
}

// Set stores a value visible to later guards and inputs.
func (rc *RunContext) Set(name, value string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.values[name] = value
}

// Used reports whether an input referenced the placeholder.
func (rc *RunContext) Used(name string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	_, ok := rc.used[name]

	return ok
}

// Captures returns captured values by identifier.
func (rc *RunContext) Captures() map[string]string {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	captures := make(map[string]string, len(rc.captures))
	for id, value := range rc.captures {
		captures[id] = value
	}

	return captures
}

// Transactions returns recorded protocol actions in order.
func (rc *RunContext) Transactions() []models.TransactionData {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return append([]models.TransactionData(nil), rc.transactions...)
}

// Snapshots returns screens taken after captures.
func (rc *RunContext) Snapshots() []screen.Snapshot {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return append([]screen.Snapshot(nil), rc.snapshots...)
}

// RawOutput concatenates the text of screen snapshots.
func (rc *RunContext) RawOutput() string {
	snapshots := rc.Snapshots()
	texts := make([]string, 0, len(snapshots))

	for _, s := range snapshots {
		if s.HasText() {
			texts = append(texts, s.Text)
		}
	}

	return strings.Join(texts, "\n")
}

// NoData reports whether a no-data screen was recognized.
func (rc *RunContext) NoData() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.noData
}

func (rc *RunContext) markUsed(names []string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, name := range names {
		rc.used[name] = struct{}{}
	}
}

func (rc *RunContext) capture(id, value string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.captures[id] = value
	rc.values[id] = value
}

func (rc *RunContext) snapshot(s screen.Snapshot) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.snapshots = append(rc.snapshots, s)
}

func (rc *RunContext) flagNoData() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.noData = true
}

func (rc *RunContext) record(action, actionContext string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.transactions = append(rc.transactions, models.TransactionData{
		RequestID:          rc.RequestID,
		Action:             action,
		ActionContext:      actionContext,
		Credential:         rc.Credential,
		SessionID:          rc.SessionID,
		CallingApplication: rc.CallingApplication,
		Tags:               rc.Tags,
		CreatedAt:          time.Now(),
	})
}
