package adapter

import "sync"

// Factory builds the default adapter on first use.
type Factory func() (ProjectsAdapter, error)

// Provider holds the active adapter instance. The default is resolved
// lazily from the factory on first Get and cached for the rest of the
// process. Override installs an explicit instance (test isolation) that
// stays active for all subsequent Gets until Reset.
//
// The provider is passed to consumers explicitly; there is no package-level
// instance.
type Provider struct {
	mu      sync.Mutex
	factory Factory
	active  ProjectsAdapter
}

func NewProvider(factory Factory) *Provider {
	return &Provider{factory: factory}
}

// Get returns the active adapter, resolving the default lazily.
func (p *Provider) Get() (ProjectsAdapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return p.active, nil
	}
	a, err := p.factory()
	if err != nil {
		return nil, err
	}
	p.active = a
	return p.active, nil
}

// Override installs an explicit adapter instance. Passing nil is equivalent
// to Reset.
func (p *Provider) Override(a ProjectsAdapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = a
}

// Reset drops the cached instance so the next Get re-runs the factory.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = nil
}
