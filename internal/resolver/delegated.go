package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/gateway"
	"github.com/bobmcallan/flytel-agent/internal/llm"
)

// delegatedCatalogCap bounds how many operations the resolution prompt lists.
const delegatedCatalogCap = 150

const delegatedSystemPrompt = "You choose which API operation to call based on the user's request. " +
	"Reply with a single JSON object only, no other text. Use this exact shape:\n" +
	`{"operation_id": "<operationId from the list>", "path_params": {} or {"paramName": "value"}, ` +
	`"query_params": {} or {"key": "value"}, "request_body": null or {...}}` + "\n" +
	"path_params: fill path placeholders (e.g. airportId, id). query_params: for GET query string. " +
	"request_body: only for POST/PUT/PATCH; null for GET/DELETE. Use empty objects {} where nothing is needed."

// DelegatedStrategy asks an LLM to pick one operation and its arguments in a
// single free-form completion. The same code serves the local and remote
// variants; only the provider behind it differs.
type DelegatedStrategy struct {
	name     string
	provider llm.Provider
	catalog  *catalog.Catalog
	logger   *common.Logger
}

// NewDelegatedStrategy builds a delegated strategy. name distinguishes the
// local and remote variants in logs.
func NewDelegatedStrategy(name string, provider llm.Provider, cat *catalog.Catalog, logger *common.Logger) *DelegatedStrategy {
	return &DelegatedStrategy{name: name, provider: provider, catalog: cat, logger: logger}
}

func (s *DelegatedStrategy) Name() string { return s.name }

// Resolve sends the compact catalog plus the utterance and parses the
// model's JSON answer. Anything that is not a usable, catalog-known
// operation id comes back Unresolved so the chain can fall through; only a
// model without tool support halts resolution.
func (s *DelegatedStrategy) Resolve(ctx context.Context, utterance string, history []llm.Message) Outcome {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: delegatedSystemPrompt}}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: fmt.Sprintf("Available operations:\n%s\n\nUser request: %s\n\nRespond with JSON only:",
			gateway.RenderCatalog(s.catalog, delegatedCatalogCap), utterance),
	})

	reply, err := s.provider.Chat(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		if errors.Is(err, llm.ErrToolsUnsupported) {
			return Failed(err.Error())
		}
		s.logger.Warn().Err(err).Str("strategy", s.name).Msg("delegated resolution failed")
		return Unresolved()
	}

	call, ok := parseDelegatedReply(reply.Content)
	if !ok {
		s.logger.Debug().Str("strategy", s.name).Msg("delegated reply was not a usable JSON object")
		return Unresolved()
	}
	if _, known := s.catalog.Get(call.OperationID); !known {
		s.logger.Debug().
			Str("strategy", s.name).
			Str("operation_id", call.OperationID).
			Msg("delegated reply named an unknown operation")
		return Unresolved()
	}
	return Resolved(call)
}

// parseDelegatedReply extracts the JSON object from a model reply, tolerating
// markdown code fences by cutting from the first { to the last }.
func parseDelegatedReply(text string) (gateway.ResolvedCall, bool) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return gateway.ResolvedCall{}, false
		}
		text = text[start : end+1]
	}

	var data struct {
		OperationID string `json:"operation_id"`
		PathParams  any    `json:"path_params"`
		QueryParams any    `json:"query_params"`
		RequestBody any    `json:"request_body"`
	}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return gateway.ResolvedCall{}, false
	}
	if data.OperationID == "" {
		return gateway.ResolvedCall{}, false
	}
	return gateway.ResolvedCall{
		OperationID: data.OperationID,
		PathParams:  gateway.CoerceParamMap(data.PathParams),
		QueryParams: gateway.CoerceParamMap(data.QueryParams),
		RequestBody: data.RequestBody,
	}, true
}
