// Package gateway turns the operation catalog into callable tools and
// executes resolved calls against the external API. Tool synthesis is
// deterministic: the same catalog always yields the same descriptor list.
package gateway

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/llm"
)

// GenericToolName is the single dispatch tool synthesized in generic mode.
const GenericToolName = "call_api_operation"

// DefaultCatalogCap bounds how many operations the generic tool description
// renders before truncating.
const DefaultCatalogCap = 200

const maxDescriptionRunes = 300

// PerOperationTools synthesizes one tool descriptor per catalog operation.
// The tool name is the operation id; arguments are the operation's path and
// query parameters plus a request_body object for body-carrying methods.
func PerOperationTools(cat *catalog.Catalog) []llm.Tool {
	ops := cat.Operations()
	tools := make([]llm.Tool, 0, len(ops))
	for _, op := range ops {
		tools = append(tools, llm.Tool{
			Name:        op.OperationID,
			Description: operationDescription(op),
			Schema:      operationSchema(op),
		})
	}
	return tools
}

// GenericTool synthesizes the single dispatch descriptor whose description
// embeds the rendered catalog. At most capOps operations are rendered; the
// executor still accepts ids beyond the cap.
func GenericTool(cat *catalog.Catalog, capOps int) llm.Tool {
	if capOps <= 0 {
		capOps = DefaultCatalogCap
	}
	return llm.Tool{
		Name: GenericToolName,
		Description: "Call one operation of the external API. Pick the operation_id from this catalog:\n" +
			RenderCatalog(cat, capOps),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation_id": map[string]any{
					"type":        "string",
					"description": "operationId from the catalog",
				},
				"path_params": map[string]any{
					"type":        "object",
					"description": "values for {placeholders} in the path",
				},
				"query_params": map[string]any{
					"type":        "object",
					"description": "query string values",
				},
				"request_body": map[string]any{
					"type":        "object",
					"description": "JSON body for POST/PUT/PATCH, omit otherwise",
				},
			},
			"required": []string{"operation_id"},
		},
	}
}

// RenderCatalog produces the compact operation listing used in the generic
// tool description and in delegated resolution prompts. Summaries are cut at
// 100 runes; operations beyond capOps collapse into a trailing count.
func RenderCatalog(cat *catalog.Catalog, capOps int) string {
	ops := cat.Operations()
	var b strings.Builder
	for i, op := range ops {
		if i >= capOps {
			fmt.Fprintf(&b, "\n... and %d more operations.", len(ops)-capOps)
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s %s — %s",
			op.OperationID, op.Method, op.PathTemplate, truncateRunes(op.Summary, 100))
	}
	return b.String()
}

func operationDescription(op catalog.Operation) string {
	summary := strings.TrimSpace(op.Summary)
	if summary == "" {
		summary = "External API call"
	}
	desc := fmt.Sprintf("%s — %s %s", summary, op.Method, op.PathTemplate)
	if len([]rune(desc)) > maxDescriptionRunes {
		desc = truncateRunes(desc, maxDescriptionRunes-3) + "..."
	}
	return desc
}

func operationSchema(op catalog.Operation) map[string]any {
	properties := map[string]any{}
	required := []string{}
	for _, p := range op.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.In + " parameter",
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	if op.HasBody() {
		properties["request_body"] = map[string]any{
			"type":        "object",
			"description": "JSON body for the request (optional)",
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
