// Package resolver maps a natural-language utterance to external API
// operations. Three strategies exist: static keyword matching, which narrows
// the tool set offered to the model, and local/remote delegated reasoning,
// which ask an LLM to pick one operation and its arguments outright.
// Strategies run in a configured order; each reports an explicit Outcome so
// the chain never has to guess what "nil" meant.
package resolver

import (
	"context"

	"github.com/bobmcallan/flytel-agent/internal/gateway"
	"github.com/bobmcallan/flytel-agent/internal/llm"
)

// OutcomeKind classifies a strategy result.
type OutcomeKind int

const (
	// KindResolved carries a fully-specified call ready for execution.
	KindResolved OutcomeKind = iota
	// KindRestricted carries a narrowed tool-name set for the model to
	// choose from; argument values still come from the model's own call.
	KindRestricted
	// KindUnresolved means the strategy could not decide; try the next one.
	KindUnresolved
	// KindFailed means resolution must stop (for example the reasoning
	// service rejected tool use entirely).
	KindFailed
)

// Outcome is one strategy's verdict on an utterance.
type Outcome struct {
	Kind      OutcomeKind
	Call      gateway.ResolvedCall
	ToolNames []string
	Reason    string
}

// Resolved wraps a call in a KindResolved outcome.
func Resolved(call gateway.ResolvedCall) Outcome {
	return Outcome{Kind: KindResolved, Call: call}
}

// Restricted wraps a tool-name subset in a KindRestricted outcome.
func Restricted(toolNames []string) Outcome {
	return Outcome{Kind: KindRestricted, ToolNames: toolNames}
}

// Unresolved reports that the strategy made no decision.
func Unresolved() Outcome {
	return Outcome{Kind: KindUnresolved}
}

// Failed reports that resolution cannot continue.
func Failed(reason string) Outcome {
	return Outcome{Kind: KindFailed, Reason: reason}
}

// Strategy is one resolution approach. Implementations must treat their own
// errors as Unresolved unless continuing is pointless.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, utterance string, history []llm.Message) Outcome
}
