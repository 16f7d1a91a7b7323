package resolver

import (
	"context"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/llm"
)

// Providers supplies the delegated strategies' backends. Remote may be nil
// or credential-less, in which case remote resolution silently degrades to
// local.
type Providers struct {
	Local        llm.Provider
	Remote       llm.Provider
	RemoteHasKey bool
}

// Resolver runs an ordered strategy chain over one catalog.
//
// The order is fixed at construction: when a delegated strategy is
// configured it runs first and the keyword restriction is the fallback;
// otherwise the keyword strategy runs alone. Earlier versions of this
// pipeline disagreed with themselves about that order, so it is pinned here.
type Resolver struct {
	strategies []Strategy
	keyword    *KeywordStrategy
	logger     *common.Logger
}

// New builds the chain for the configured strategy name: "keyword", "local"
// or "remote". Unrecognized names behave as "keyword".
func New(strategyName string, keywordConfig KeywordConfig, cat *catalog.Catalog, providers Providers, logger *common.Logger) *Resolver {
	keyword := NewKeywordStrategy(keywordConfig, cat)
	r := &Resolver{keyword: keyword, logger: logger}

	switch strategyName {
	case "remote":
		provider := providers.Remote
		if !providers.RemoteHasKey || provider == nil {
			logger.Debug().Msg("remote resolver has no credential, using local delegation")
			provider = providers.Local
			strategyName = "local"
		}
		if provider != nil {
			r.strategies = append(r.strategies, NewDelegatedStrategy(strategyName, provider, cat, logger))
		}
	case "local":
		if providers.Local != nil {
			r.strategies = append(r.strategies, NewDelegatedStrategy("local", providers.Local, cat, logger))
		}
	}
	r.strategies = append(r.strategies, keyword)
	return r
}

// Keyword exposes the keyword strategy for intent gating.
func (r *Resolver) Keyword() *KeywordStrategy {
	return r.keyword
}

// Resolve runs the chain. The first Resolved, Restricted or Failed outcome
// wins; Unresolved moves to the next strategy. The keyword strategy closes
// every chain and always restricts, so the zero Outcome is unreachable in a
// constructed Resolver.
func (r *Resolver) Resolve(ctx context.Context, utterance string, history []llm.Message) Outcome {
	for _, strategy := range r.strategies {
		outcome := strategy.Resolve(ctx, utterance, history)
		switch outcome.Kind {
		case KindUnresolved:
			r.logger.Debug().Str("strategy", strategy.Name()).Msg("strategy did not resolve, falling through")
			continue
		case KindResolved:
			r.logger.Info().
				Str("strategy", strategy.Name()).
				Str("operation_id", outcome.Call.OperationID).
				Msg("utterance resolved to operation")
			return outcome
		case KindRestricted:
			r.logger.Debug().
				Str("strategy", strategy.Name()).
				Int("tools", len(outcome.ToolNames)).
				Msg("tool set restricted")
			return outcome
		default:
			return outcome
		}
	}
	return Outcome{Kind: KindUnresolved}
}
