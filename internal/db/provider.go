package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/hexslice/internal/pipeline"
)

// ProviderID identifies the history store in the registry.
const ProviderID = "hexslice.history.sqlite"

// Provider exposes the history database as a registry provider. It opens
// and migrates the database on Initialize and closes it on Shutdown.
type Provider struct {
	path string

	mu sync.Mutex
	db *DB
}

func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

func (p *Provider) ID() string      { return ProviderID }
func (p *Provider) Name() string    { return "Run history (sqlite)" }
func (p *Provider) Version() string { return "1.0.0" }

func (p *Provider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return nil
	}
	d, err := OpenAndMigrate(p.path)
	if err != nil {
		return err
	}
	p.db = d
	diagf("opened history database %s", p.path)
	return nil
}

func (p *Provider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// DB returns the open database, or nil before Initialize.
func (p *Provider) DB() *DB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db
}

func (p *Provider) open() (*DB, error) {
	d := p.DB()
	if d == nil {
		return nil, fmt.Errorf("history database %s is not open", p.path)
	}
	return d, nil
}

// RecordRun implements pipeline.RunRecorder.
func (p *Provider) RecordRun(ctx context.Context, r pipeline.Run) error {
	d, err := p.open()
	if err != nil {
		opsf("dropping run %s: %v", r.ID, err)
		return err
	}
	return d.RecordRun(ctx, r)
}

// ResolveTarget implements output.Resolver.
func (p *Provider) ResolveTarget(ctx context.Context, name string) (string, bool, error) {
	d, err := p.open()
	if err != nil {
		return "", false, err
	}
	return d.ResolveTarget(ctx, name)
}
