// Package replies resolves the single automated reply for a browsing customer
// and delivers it.
package replies

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/catalog"
	"github.com/wolfman30/chatcommerce/internal/triggers"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// Stage identifies which strategy produced a reply.
type Stage string

const (
	StageTrigger    Stage = "trigger"
	StagePaymentFAQ Stage = "payment_faq"
	StageCatalog    Stage = "catalog"
	StageWelcome    Stage = "welcome"
	StageTone       Stage = "tone_fallback"
)

type Reply struct {
	Text  string
	Stage Stage
}

// Generator is the catalog-grounded sales reply collaborator. An empty string
// means it had nothing to say.
type Generator interface {
	GenerateSalesReply(ctx context.Context, message string, products []catalog.Product) (string, error)
}

type triggerLister interface {
	List(ctx context.Context, ownerID string) ([]triggers.Trigger, error)
}

type productLister interface {
	ActiveProducts(ctx context.Context, ownerID string, limit int) ([]catalog.Product, error)
}

type Resolver struct {
	triggers  triggerLister
	products  productLister
	generator Generator
	fallbacks Fallbacks
	timeout   time.Duration
	logger    *logging.Logger
}

type ResolverOption func(*Resolver)

// WithGenerationTimeout bounds the generation call.
func WithGenerationTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithFallbacks(f Fallbacks) ResolverOption {
	return func(r *Resolver) { r.fallbacks = f }
}

// NewResolver builds the chain. A nil generator skips catalog generation.
func NewResolver(trg triggerLister, products productLister, generator Generator, logger *logging.Logger, opts ...ResolverOption) *Resolver {
	if trg == nil {
		panic("replies: trigger lister required")
	}
	if products == nil {
		panic("replies: product lister required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Resolver{
		triggers:  trg,
		products:  products,
		generator: generator,
		fallbacks: DefaultFallbacks(),
		timeout:   8 * time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the stages in order and returns the first reply produced.
// Collaborator failures fall through to the next stage.
func (r *Resolver) Resolve(ctx context.Context, settings *business.Settings, message string) (Reply, bool) {
	if settings == nil {
		settings = business.DefaultSettings("")
	}
	ownerID := settings.OwnerID

	set, err := r.triggers.List(ctx, ownerID)
	if err != nil {
		r.logger.Warn("trigger lookup failed", "error", err, "owner_id", ownerID)
	} else if text, ok := triggers.NewMatcher(set).Match(message); ok {
		return Reply{Text: text, Stage: StageTrigger}, true
	}

	if IsPaymentQuestion(message) {
		if text := DescribePayments(settings); text != "" {
			return Reply{Text: text, Stage: StagePaymentFAQ}, true
		}
	}

	if text := r.generate(ctx, ownerID, message); text != "" {
		return Reply{Text: text, Stage: StageCatalog}, true
	}

	if welcome := strings.TrimSpace(settings.WelcomeMessage); welcome != "" {
		return Reply{Text: welcome, Stage: StageWelcome}, true
	}
	if text := r.fallbacks.Compose(settings.Tone, settings.Language); text != "" {
		return Reply{Text: text, Stage: StageTone}, true
	}
	return Reply{}, false
}

func (r *Resolver) generate(ctx context.Context, ownerID, message string) string {
	if r.generator == nil {
		return ""
	}
	products, err := r.products.ActiveProducts(ctx, ownerID, catalog.GroundingLimit)
	if err != nil {
		r.logger.Warn("catalog lookup failed", "error", err, "owner_id", ownerID)
		return ""
	}
	if len(products) == 0 {
		return ""
	}

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	text, err := r.generator.GenerateSalesReply(genCtx, message, products)
	if err != nil {
		r.logger.Warn("sales reply generation failed", "error", err, "owner_id", ownerID)
		return ""
	}
	return strings.TrimSpace(text)
}
