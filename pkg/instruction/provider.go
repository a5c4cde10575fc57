/*
2026 © Postgres.ai
*/

package instruction

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

// Directories of instruction set kinds.
const (
	logonDir = "logon"
	queryDir = "query"
	parseDir = "parse"
)

// Provider resolves named instruction sets.
type Provider interface {
	Logon(ctx context.Context, name string) (*LogonSet, error)
	Query(ctx context.Context, name string) (*QuerySet, error)
	Parse(ctx context.Context, name string) (*ParseSet, error)
}

// FileProvider loads instruction sets from YAML files and caches them.
// Files are laid out as <dir>/{logon,query,parse}/<name>.yml.
type FileProvider struct {
	dir string

	mu     sync.RWMutex
	logons map[string]*LogonSet
	query  map[string]*QuerySet
	parse  map[string]*ParseSet
}

// NewFileProvider creates a new file provider.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{
		dir:    dir,
		logons: make(map[string]*LogonSet),
		query:  make(map[string]*QuerySet),
		parse:  make(map[string]*ParseSet),
	}
}

// Logon returns a logon instruction set.
func (p *FileProvider) Logon(_ context.Context, name string) (*LogonSet, error) {
	return load(p, func() map[string]*LogonSet { return p.logons }, logonDir, name, func(s *LogonSet) error {
		if s.Name == "" {
			s.Name = name
		}

		return s.Compile()
	})
}

// Query returns a query instruction set.
func (p *FileProvider) Query(_ context.Context, name string) (*QuerySet, error) {
	return load(p, func() map[string]*QuerySet { return p.query }, queryDir, name, func(s *QuerySet) error {
		if s.Name == "" {
			s.Name = name
		}

		return s.Compile()
	})
}

// Parse returns a parse instruction set.
func (p *FileProvider) Parse(_ context.Context, name string) (*ParseSet, error) {
	return load(p, func() map[string]*ParseSet { return p.parse }, parseDir, name, func(s *ParseSet) error {
		if s.Name == "" {
			s.Name = name
		}

		return s.Compile()
	})
}

// Reset drops cached instruction sets so that the next lookup rereads files.
func (p *FileProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logons = make(map[string]*LogonSet)
	p.query = make(map[string]*QuerySet)
	p.parse = make(map[string]*ParseSet)
}

func load[T any](p *FileProvider, cache func() map[string]*T, kind, name string, compile func(*T) error) (*T, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, errors.Errorf("invalid %s instruction set name %q", kind, name)
	}

	p.mu.RLock()
	set, ok := cache()[name]
	p.mu.RUnlock()

	if ok {
		return set, nil
	}

	path := filepath.Join(p.dir, kind, name+".yml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(models.ErrNotFound, "%s instruction set %q", kind, name)
		}

		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	set = new(T)

	if err := yaml.UnmarshalStrict(data, set); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	if err := compile(set); err != nil {
		return nil, err
	}

	log.Dbg("Loaded instruction set:", path)

	p.mu.Lock()
	defer p.mu.Unlock()

	// Keep the first loaded instance so concurrent callers share one tree.
	if cached, ok := cache()[name]; ok {
		return cached, nil
	}

	cache()[name] = set

	return set, nil
}
