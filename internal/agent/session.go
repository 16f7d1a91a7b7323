// Package agent runs the conversational dispatch loop: a user turn goes to
// the reasoning service with a tool set, requested tool calls execute against
// the gateway or the local inventory, and results feed back until the model
// produces a final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/gateway"
	"github.com/bobmcallan/flytel-agent/internal/inventory"
	"github.com/bobmcallan/flytel-agent/internal/llm"
	"github.com/bobmcallan/flytel-agent/internal/resolver"
)

const defaultMaxIterations = 10

const gatewaySystemInstruction = "CRITICAL: Use the API tool whose name matches the request: list of airports -> Settings_GetAirports; " +
	"list of hotels -> Settings_GetHotels; passengers -> Airports_GetPassengers or similar. " +
	"Do NOT use Settings_GetProducts or inventory tools for airports/hotels/passengers. " +
	"You can chain API calls: first call Settings_GetAirports to get airport IDs, then use the airport id (UUID) in later calls. " +
	"When a user refers to an airport by name (e.g. 'Oslo Gardermoen'), look up its id in the previous tool result and pass that id (e.g. airportId), never the name. " +
	"If a tool returns 'Missing required path parameters', call the suggested list endpoint first and use the returned IDs in the next call. " +
	"For products, stock, inventory, brand -> use inventory tools. If a tool errors, explain to the user."

const inventorySystemInstruction = "You are an inventory manager. You have access to local data files via tools. " +
	"When a user asks about prices, stock, or history, you MUST call the appropriate tool. " +
	"If a tool returns an error, explain it to the user."

// Progress receives human-facing status lines ("calling API: ...") during a
// turn. Nil is allowed.
type Progress func(line string)

// Session owns one conversation: the history, the tool set, and the
// collaborators that execute tool calls. Not safe for concurrent turns; the
// loop is one logical thread per conversation.
type Session struct {
	provider  llm.Provider
	executor  *gateway.Executor
	resolver  *resolver.Resolver
	inventory *inventory.Store
	logger    *common.Logger

	systemInstruction string
	inventoryTools    []llm.Tool
	gatewayTools      []llm.Tool
	gatewayToolNames  map[string]bool
	toolMode          string
	maxIterations     int

	history []llm.Message
}

// Options assembles a session. Catalog may be nil (gateway disabled).
type Options struct {
	Provider  llm.Provider
	Catalog   *catalog.Catalog
	Resolver  *resolver.Resolver
	Executor  *gateway.Executor
	Inventory *inventory.Store
	// ToolMode is "per_operation" or "generic".
	ToolMode      string
	CatalogCap    int
	MaxIterations int
	Logger        *common.Logger
}

// NewSession builds a session. The system instruction and gateway tool set
// depend on whether a catalog is present.
func NewSession(opts Options) *Session {
	s := &Session{
		provider:         opts.Provider,
		executor:         opts.Executor,
		resolver:         opts.Resolver,
		inventory:        opts.Inventory,
		logger:           opts.Logger,
		inventoryTools:   inventory.Tools(),
		gatewayToolNames: map[string]bool{},
		toolMode:         opts.ToolMode,
		maxIterations:    opts.MaxIterations,
	}
	if s.maxIterations <= 0 {
		s.maxIterations = defaultMaxIterations
	}

	if opts.Catalog != nil {
		s.systemInstruction = gatewaySystemInstruction
		if opts.ToolMode == "generic" {
			s.gatewayTools = []llm.Tool{gateway.GenericTool(opts.Catalog, opts.CatalogCap)}
		} else {
			s.gatewayTools = gateway.PerOperationTools(opts.Catalog)
		}
		for _, tool := range s.gatewayTools {
			s.gatewayToolNames[tool.Name] = true
		}
	} else {
		s.systemInstruction = inventorySystemInstruction
	}
	return s
}

// GatewayEnabled reports whether external API tools are available.
func (s *Session) GatewayEnabled() bool {
	return len(s.gatewayTools) > 0
}

// History returns the accumulated conversation, without the system message.
func (s *Session) History() []llm.Message {
	return s.history
}

// Turn processes one user utterance and returns the assistant's final
// answer. Tool calls are executed sequentially, with one follow-up model
// call per batch, bounded by the configured iteration cap. The only error
// that escapes is a fatal one, such as the model lacking tool support.
func (s *Session) Turn(ctx context.Context, userInput string, progress Progress) (string, error) {
	turnID := uuid.New().String()
	logger := s.logger.WithCorrelationId(turnID)
	logger.Info().Str("input", common.Truncate(userInput, 120)).Msg("turn started")

	s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: userInput})

	tools, preResolved, err := s.selectTools(ctx, userInput, logger)
	if err != nil {
		return "", err
	}
	if preResolved != nil {
		s.injectResolvedCall(ctx, *preResolved, logger, progress)
	}

	for iteration := 0; iteration < s.maxIterations; iteration++ {
		reply, err := s.provider.Chat(ctx, llm.ChatRequest{
			Messages: s.messagesWithSystem(),
			Tools:    tools,
		})
		if err != nil {
			if errors.Is(err, llm.ErrToolsUnsupported) {
				return "", err
			}
			return "", fmt.Errorf("reasoning service call failed: %w", err)
		}

		if len(reply.ToolCalls) == 0 {
			s.history = append(s.history, reply)
			logger.Info().Int("iterations", iteration+1).Msg("turn complete")
			return reply.Content, nil
		}

		s.history = append(s.history, reply)
		for _, call := range reply.ToolCalls {
			result := s.executeToolCall(ctx, call, logger, progress)
			s.history = append(s.history, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	logger.Warn().Int("max_iterations", s.maxIterations).Msg("turn hit the iteration cap")
	return "I could not finish that request within the allowed number of steps.", nil
}

func (s *Session) messagesWithSystem() []llm.Message {
	msgs := make([]llm.Message, 0, len(s.history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.systemInstruction})
	return append(msgs, s.history...)
}

// selectTools picks the tool set for this turn. Gateway intent routes the
// utterance through the resolver: a resolved call is pre-injected, a
// restriction narrows the offered gateway tools. Everything else gets the
// full inventory+gateway set.
func (s *Session) selectTools(ctx context.Context, userInput string, logger *common.Logger) ([]llm.Tool, *gateway.ResolvedCall, error) {
	allTools := append(append([]llm.Tool{}, s.inventoryTools...), s.gatewayTools...)
	if !s.GatewayEnabled() || s.resolver == nil || !s.resolver.Keyword().MatchesIntent(userInput) {
		return allTools, nil, nil
	}

	outcome := s.resolver.Resolve(ctx, userInput, s.history[:len(s.history)-1])
	switch outcome.Kind {
	case resolver.KindResolved:
		return allTools, &outcome.Call, nil
	case resolver.KindRestricted:
		if s.toolMode == "generic" {
			return s.gatewayTools, nil, nil
		}
		restricted := make([]llm.Tool, 0, len(outcome.ToolNames))
		allowed := map[string]bool{}
		for _, name := range outcome.ToolNames {
			allowed[name] = true
		}
		for _, tool := range s.gatewayTools {
			if allowed[tool.Name] {
				restricted = append(restricted, tool)
			}
		}
		if len(restricted) == 0 {
			return allTools, nil, nil
		}
		logger.Debug().Int("tools", len(restricted)).Msg("gateway tool set restricted for turn")
		return restricted, nil, nil
	case resolver.KindFailed:
		return nil, nil, fmt.Errorf("operation resolution failed: %s", outcome.Reason)
	default:
		return allTools, nil, nil
	}
}

// injectResolvedCall synthesizes the assistant tool-call message for a
// delegated resolution and executes it, so the follow-up model call only has
// to phrase the answer.
func (s *Session) injectResolvedCall(ctx context.Context, call gateway.ResolvedCall, logger *common.Logger, progress Progress) {
	args := map[string]any{
		"operation_id": call.OperationID,
		"path_params":  call.PathParams,
		"query_params": call.QueryParams,
	}
	if call.RequestBody != nil {
		args["request_body"] = call.RequestBody
	}
	encoded, _ := json.Marshal(args)
	callID := "call_" + uuid.New().String()[:8]

	s.history = append(s.history, llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:        callID,
			Name:      gateway.GenericToolName,
			Arguments: string(encoded),
		}},
	})

	s.reportAPICall(call, call.OperationID, logger, progress)
	result := s.executor.Execute(ctx, call)
	s.history = append(s.history, llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: callID,
		Content:    result,
	})
}

// executeToolCall routes one model-requested call to the gateway, the
// inventory store, or the unknown-tool result.
func (s *Session) executeToolCall(ctx context.Context, call llm.ToolCall, logger *common.Logger, progress Progress) string {
	args := decodeArgs(call.Arguments)

	if s.executor != nil && call.Name == gateway.GenericToolName && s.gatewayToolNames[call.Name] {
		operationID, _ := args["operation_id"].(string)
		resolved := gateway.ResolvedCall{
			OperationID: operationID,
			PathParams:  gateway.CoerceParamMap(args["path_params"]),
			QueryParams: gateway.CoerceParamMap(args["query_params"]),
		}
		if body, ok := args["request_body"]; ok {
			resolved.RequestBody = body
		}
		s.reportAPICall(resolved, resolved.OperationID, logger, progress)
		return s.executor.ExecuteGeneric(ctx, args)
	}

	if s.executor != nil && s.gatewayToolNames[call.Name] {
		routed, _ := s.executor.RouteArgs(call.Name, args)
		s.reportAPICall(routed, call.Name, logger, progress)
		return s.executor.Execute(ctx, routed)
	}

	if s.inventory != nil {
		if result, ok := s.inventory.Execute(call.Name, args); ok {
			if progress != nil {
				progress(fmt.Sprintf("  ... using tool: %s ...", call.Name))
			}
			logger.Info().Str("tool", call.Name).Msg("inventory tool call")
			return result
		}
	}

	logger.Warn().Str("tool", call.Name).Msg("unknown tool requested")
	return fmt.Sprintf("Unknown tool: %s", call.Name)
}

func (s *Session) reportAPICall(call gateway.ResolvedCall, operationID string, logger *common.Logger, progress Progress) {
	line, ok := s.executor.RequestLine(call)
	if !ok {
		line = "(unknown operation)"
	}
	logger.Info().Str("operation_id", operationID).Str("request", line).Msg("calling external API")
	if progress != nil {
		progress(fmt.Sprintf("  ... calling API: %s — %s ...", operationID, line))
	}
}

func decodeArgs(raw string) map[string]any {
	var args map[string]any
	if raw == "" {
		return map[string]any{}
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
