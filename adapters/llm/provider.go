package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/unclepete-20/chatbot-test/config"
	"github.com/unclepete-20/chatbot-test/domain"
	"github.com/unclepete-20/chatbot-test/utils/log"
	"go.uber.org/zap"
)

// New returns the completer selected by cfg.Provider, wrapped with a
// per-call timeout when one is configured.
func New(ctx context.Context, cfg config.LLMConfig) (domain.Completer, error) {
	var (
		completer domain.Completer
		err       error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		completer = NewOpenAI(cfg)
	case config.ProviderGemini:
		completer, err = NewGemini(ctx, cfg)
	case config.ProviderAnthropic:
		completer = NewAnthropic(cfg)
	default:
		err = fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		log.WithCtx(ctx).Warn("No API key configured; the provider SDK will look for its own environment variable",
			zap.String("provider", cfg.Provider))
	}
	return WithTimeout(completer, cfg.CompletionTimeout), nil
}

type timeoutCompleter struct {
	next    domain.Completer
	timeout time.Duration
}

// WithTimeout bounds every Complete call by d. A zero d returns c unchanged.
func WithTimeout(c domain.Completer, d time.Duration) domain.Completer {
	if d <= 0 {
		return c
	}
	return &timeoutCompleter{next: c, timeout: d}
}

func (t *timeoutCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}
