package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/config"
)

// Router sends requests along an ordered provider chain. The first provider
// is the primary; each failure moves to the next one. There are no retries
// on the same provider.
type Router struct {
	mu        sync.RWMutex
	providers []Provider
	log       *zap.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger fallbacks are reported on.
func WithRouterLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRouter creates a router over providers, in priority order.
func NewRouter(providers []Provider, opts ...RouterOption) *Router {
	r := &Router{
		providers: append([]Provider(nil), providers...),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider appends a provider to the end of the chain.
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, provider)
}

// Primary returns the first provider in the chain.
func (r *Router) Primary() (Provider, error) {
	chain := r.chain()
	if len(chain) == 0 {
		return nil, ErrNoAPIKey
	}
	return chain[0], nil
}

// Chat tries each provider in order and returns the first success.
// Authentication failures and context cancellation stop the chain.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.chain()
	if len(chain) == 0 {
		return nil, ErrNoAPIKey
	}

	var lastErr error
	for i, p := range chain {
		resp, err := p.Chat(ctx, messages, opts)
		if err == nil {
			if i > 0 {
				r.log.Info("llm fallback succeeded", zap.String("provider", describe(p)), zap.Int("position", i))
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrNoAPIKey) {
			return nil, err
		}
		r.log.Warn("llm provider failed", zap.String("provider", describe(p)), zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// HealthCheck pings every provider concurrently.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	chain := r.chain()
	results := make(map[string]error, len(chain))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range chain {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[describe(p)] = err
			mu.Unlock()
		}(p)
	}

	wg.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies Provider).
func (r *Router) Name() string {
	p, err := r.Primary()
	if err != nil {
		return "router"
	}
	return "router/" + p.Name()
}

// Ping checks the primary provider's health (satisfies Provider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the chain in priority order.
func (r *Router) ProviderNames() []string {
	chain := r.chain()
	names := make([]string, 0, len(chain))
	for _, p := range chain {
		names = append(names, describe(p))
	}
	return names
}

func (r *Router) chain() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

// describe names a provider together with its model when it exposes one.
func describe(p Provider) string {
	if m, ok := p.(interface{ Model() string }); ok && m.Model() != "" {
		return p.Name() + "/" + m.Model()
	}
	return p.Name()
}

// NewRouterFromConfig builds the provider chain from the application config:
// the configured model first, then the fallback model on the same endpoint.
// It returns ErrNoAPIKey when no key is configured.
func NewRouterFromConfig(cfg *config.Config, log *zap.Logger) (*Router, error) {
	if cfg.LLM.Primary != "" && cfg.LLM.Primary != ProviderOpenAI {
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.LLM.Primary)
	}
	if cfg.LLM.OpenAIKey == "" {
		return nil, ErrNoAPIKey
	}
	if log == nil {
		log = zap.NewNop()
	}

	models := []string{cfg.LLM.Model}
	if fb := cfg.LLM.FallbackModel; fb != "" && fb != cfg.LLM.Model {
		models = append(models, fb)
	}

	var providers []Provider
	for _, model := range models {
		p, err := NewOpenAIProvider(cfg.LLM.OpenAIKey,
			WithOpenAIBaseURL(cfg.LLM.BaseURL),
			WithOpenAIModel(model),
			WithOpenAITemperature(cfg.LLM.Temperature),
			WithOpenAIMaxTokens(cfg.LLM.MaxTokens),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return NewRouter(providers, WithRouterLogger(log.Named("llm"))), nil
}
