// Package registry is the process-wide catalogue of named capability
// providers and drives their initialise/shutdown lifecycle.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Provider is a named, versioned component with a lifecycle. What capability
// it offers is discovered by type assertion (see Capability).
type Provider interface {
	ID() string
	Name() string
	Version() string
	// Initialize prepares the provider for use.
	Initialize() error
	// Shutdown releases the provider's resources. It must be safe to call
	// after a failed or partial Initialize.
	Shutdown() error
}

// State is the lifecycle state of a registered provider.
type State int

const (
	// Unregistered is reported for ids the registry does not hold.
	Unregistered State = iota
	Active
	Retired
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Retired:
		return "retired"
	default:
		return "unregistered"
	}
}

var (
	ErrDuplicateID = errors.New("duplicate provider id")
	ErrNotFound    = errors.New("provider not registered")
	ErrNilProvider = errors.New("nil provider")
)

// DuplicateIDError is returned by Register when an active provider already
// holds the id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("a provider with id %q is already registered", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

type entry struct {
	provider Provider
	state    State
}

// Registry holds providers keyed by id in registration order. All lifecycle
// calls run under the write lock, so they never overlap each other or a read.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds p and initialises it. A retired provider with the same id is
// replaced; an active one causes *DuplicateIDError and leaves the registry
// unchanged. If Initialize fails, p is shut down, removed, and the error is
// returned.
func (r *Registry) Register(p Provider) error {
	if p == nil || isNilPointer(p) {
		return ErrNilProvider
	}
	id := p.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		if e.state == Active {
			return &DuplicateIDError{ID: id}
		}
		r.removeLocked(id)
	}

	r.entries[id] = &entry{provider: p, state: Active}
	r.order = append(r.order, id)

	if err := p.Initialize(); err != nil {
		opsf("provider %s failed to initialise: %v", id, err)
		if serr := p.Shutdown(); serr != nil {
			opsf("provider %s failed to shut down after failed initialise: %v", id, serr)
		}
		r.removeLocked(id)
		return fmt.Errorf("initialise provider %q: %w", id, err)
	}
	diagf("registered %s (%s %s)", id, p.Name(), p.Version())
	return nil
}

// Unregister shuts down and removes the provider with id. It is a no-op when
// id is not registered. The entry is removed even if Shutdown fails.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	var err error
	if e.state == Active {
		if err = e.provider.Shutdown(); err != nil {
			opsf("provider %s failed to shut down: %v", id, err)
			err = fmt.Errorf("shut down provider %q: %w", id, err)
		}
	}
	r.removeLocked(id)
	diagf("unregistered %s", id)
	return err
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.provider, true
}

// State reports the lifecycle state of id.
func (r *Registry) State(id string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.state
	}
	return Unregistered
}

// All returns a snapshot of the registered providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].provider)
	}
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// InitializeAll re-initialises every retired provider in registration order.
// Failures are collected; a provider that fails stays retired.
func (r *Registry) InitializeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, id := range r.order {
		e := r.entries[id]
		if e.state == Active {
			continue
		}
		if err := e.provider.Initialize(); err != nil {
			opsf("provider %s failed to initialise: %v", id, err)
			errs = append(errs, fmt.Errorf("initialise provider %q: %w", id, err))
			continue
		}
		e.state = Active
	}
	return errors.Join(errs...)
}

// ShutdownAll shuts down every active provider in reverse registration order.
// One provider's failure does not stop the others: failures are collected
// and every provider ends up retired.
func (r *Registry) ShutdownAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		e := r.entries[id]
		if e.state != Active {
			continue
		}
		if err := shutdownSafely(e.provider); err != nil {
			opsf("provider %s failed to shut down: %v", id, err)
			errs = append(errs, fmt.Errorf("shut down provider %q: %w", id, err))
		}
		e.state = Retired
	}
	return errors.Join(errs...)
}

// shutdownSafely converts a panicking Shutdown into an error so bulk
// shutdown always reaches the remaining providers.
func shutdownSafely(p Provider) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during shutdown: %v", rec)
		}
	}()
	return p.Shutdown()
}

// isNilPointer catches a typed nil pointer wrapped in the interface.
func isNilPointer(p Provider) bool {
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func (r *Registry) removeLocked(id string) {
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Capability looks up id and asserts that the provider implements T.
func Capability[T any](r *Registry, id string) (T, error) {
	var zero T
	p, ok := r.Get(id)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	c, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("provider %q does not implement %T", id, (*T)(nil))
	}
	return c, nil
}
