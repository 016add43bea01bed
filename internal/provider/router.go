package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erg0nix/konsilium/internal/config"
)

// Router resolves providers by their configured name.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRouter() *Router {
	return &Router{providers: make(map[string]Provider)}
}

// NewRouterFromConfig builds one provider per configured endpoint, picking the backend named in the config.
func NewRouterFromConfig(cfg config.Config) *Router {
	router := NewRouter()

	for name, providerCfg := range cfg.Providers {
		httpCfg := HTTPConfig{
			Endpoint:    providerCfg.Endpoint,
			APIKey:      providerCfg.ResolveAPIKey(),
			HTTPTimeout: time.Duration(providerCfg.HTTPTimeoutSeconds) * time.Second,
		}

		var p Provider
		switch providerCfg.Backend {
		case config.BackendOpenAI:
			p = NewSDKProvider(httpCfg, cfg.Debug)
		default:
			p = NewHTTPProvider(httpCfg, cfg.Debug)
		}

		router.Register(name, p, providerCfg.Concurrency)
	}

	return router
}

// Register adds p under name, capping in-flight requests to limit when limit is positive.
func (r *Router) Register(name string, p Provider, limit int) {
	if limit > 0 {
		p = &limitedProvider{Provider: p, limiter: newSemaphore(limit)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = p
}

func (r *Router) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	return p, nil
}

func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type limitedProvider struct {
	Provider
	limiter *semaphore
}

func (p *limitedProvider) GenerateChat(ctx context.Context, req Request) (Response, error) {
	if err := p.limiter.acquire(ctx); err != nil {
		return Response{}, err
	}
	defer p.limiter.release()

	return p.Provider.GenerateChat(ctx, req)
}

type semaphore struct {
	ch chan struct{}
}

func newSemaphore(limit int) *semaphore {
	return &semaphore{ch: make(chan struct{}, limit)}
}

func (s *semaphore) acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *semaphore) release() {
	<-s.ch
}
