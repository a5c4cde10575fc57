/*
2026 © Postgres.ai
*/

package instruction

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

// StaticProvider serves instruction sets registered in memory.
type StaticProvider struct {
	mu     sync.RWMutex
	logons map[string]*LogonSet
	query  map[string]*QuerySet
	parse  map[string]*ParseSet
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		logons: make(map[string]*LogonSet),
		query:  make(map[string]*QuerySet),
		parse:  make(map[string]*ParseSet),
	}
}

// AddLogon compiles and registers a logon set.
func (p *StaticProvider) AddLogon(set *LogonSet) error {
	if err := set.Compile(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logons[set.Name] = set

	return nil
}

// AddQuery compiles and registers a query set.
func (p *StaticProvider) AddQuery(set *QuerySet) error {
	if err := set.Compile(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.query[set.Name] = set

	return nil
}

// AddParse compiles and registers a parse set.
func (p *StaticProvider) AddParse(set *ParseSet) error {
	if err := set.Compile(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.parse[set.Name] = set

	return nil
}

// Logon implements Provider.
func (p *StaticProvider) Logon(_ context.Context, name string) (*LogonSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set, ok := p.logons[name]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "logon set %q", name)
	}

	return set, nil
}

// Query implements Provider.
func (p *StaticProvider) Query(_ context.Context, name string) (*QuerySet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set, ok := p.query[name]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "query set %q", name)
	}

	return set, nil
}

// Parse implements Provider.
func (p *StaticProvider) Parse(_ context.Context, name string) (*ParseSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set, ok := p.parse[name]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "parse set %q", name)
	}

	return set, nil
}
