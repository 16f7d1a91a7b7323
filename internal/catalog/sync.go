package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bobmcallan/flytel-agent/internal/common"
)

// ddl creates the metadata store tables used by Load and Sync.
const ddl = `
CREATE TABLE IF NOT EXISTS api_sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	base_url TEXT NOT NULL,
	swagger_url TEXT,
	updated_at TEXT
);
CREATE TABLE IF NOT EXISTS api_operations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	api_source_id INTEGER NOT NULL REFERENCES api_sources(id),
	operation_id TEXT NOT NULL,
	method TEXT NOT NULL,
	path_template TEXT NOT NULL,
	summary TEXT,
	tag TEXT,
	resource TEXT,
	action TEXT,
	parameters_schema TEXT
);
CREATE INDEX IF NOT EXISTS idx_api_operations_source ON api_operations(api_source_id);
`

// SyncOptions configures one catalog sync run.
type SyncOptions struct {
	DatabasePath string
	SwaggerURL   string
	SourceName   string
	// BaseURLOverride wins over the document's servers[0].url when set.
	BaseURLOverride string
	Timeout         time.Duration
}

// Sync fetches a Swagger/OpenAPI document, extracts its operations, and
// replaces the stored catalog for the named source. This is the offline writer
// job; the interactive process only ever reads the store.
//
// Returns the number of operations written.
func Sync(ctx context.Context, opts SyncOptions, logger *common.Logger) (int, error) {
	if opts.DatabasePath == "" || opts.SwaggerURL == "" || opts.SourceName == "" {
		return 0, fmt.Errorf("database path, swagger URL and source name are required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.Info().Str("url", opts.SwaggerURL).Msg("fetching swagger document")
	doc, err := fetchSwagger(ctx, opts.SwaggerURL, timeout)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch swagger document: %w", err)
	}

	baseURL := resolveBaseURL(doc, opts.BaseURLOverride, opts.SwaggerURL)
	if baseURL == "" {
		return 0, fmt.Errorf("could not determine base URL: set an override or use a full swagger URL")
	}

	operations := parseSwaggerOperations(doc)
	if len(operations) == 0 {
		return 0, fmt.Errorf("swagger document contains no operations")
	}

	db, err := sql.Open("sqlite3", opts.DatabasePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return 0, fmt.Errorf("failed to create tables: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO api_sources (name, base_url, swagger_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			base_url = excluded.base_url,
			swagger_url = excluded.swagger_url,
			updated_at = excluded.updated_at`,
		opts.SourceName, strings.TrimRight(baseURL, "/"), opts.SwaggerURL, now); err != nil {
		return 0, fmt.Errorf("failed to upsert api source: %w", err)
	}

	var sourceID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM api_sources WHERE name = ?", opts.SourceName,
	).Scan(&sourceID); err != nil {
		return 0, fmt.Errorf("failed to read api source id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM api_operations WHERE api_source_id = ?", sourceID); err != nil {
		return 0, fmt.Errorf("failed to clear previous operations: %w", err)
	}

	for _, op := range operations {
		paramsJSON, err := json.Marshal(op.Parameters)
		if err != nil {
			return 0, fmt.Errorf("failed to encode parameters for %s: %w", op.OperationID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO api_operations
			(api_source_id, operation_id, method, path_template, summary, tag, resource, action, parameters_schema)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sourceID, op.OperationID, op.Method, op.PathTemplate,
			op.Summary, op.Tag, op.Resource, op.Action, string(paramsJSON)); err != nil {
			return 0, fmt.Errorf("failed to insert operation %s: %w", op.OperationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sync: %w", err)
	}

	logger.Info().
		Str("source", opts.SourceName).
		Int64("source_id", sourceID).
		Int("operations", len(operations)).
		Msg("catalog sync complete")
	return len(operations), nil
}

// swaggerDoc is the subset of an OpenAPI document the sync job reads.
type swaggerDoc struct {
	Servers []struct {
		URL string `json:"url"`
	} `json:"servers"`
	Paths map[string]map[string]json.RawMessage `json:"paths"`
}

// swaggerOperation is the subset of an OpenAPI operation object the sync job reads.
type swaggerOperation struct {
	OperationID string   `json:"operationId"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Parameters  []struct {
		Name     string `json:"name"`
		In       string `json:"in"`
		Required bool   `json:"required"`
		Schema   struct {
			Type string `json:"type"`
		} `json:"schema"`
	} `json:"parameters"`
}

func fetchSwagger(ctx context.Context, swaggerURL string, timeout time.Duration) (*swaggerDoc, error) {
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, swaggerURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swagger endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var doc swaggerDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid swagger JSON: %w", err)
	}
	return &doc, nil
}

// resolveBaseURL picks the API base URL: explicit override, then the
// document's first server entry, then the swagger URL's scheme+host.
func resolveBaseURL(doc *swaggerDoc, override, swaggerURL string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
		return strings.TrimRight(doc.Servers[0].URL, "/")
	}
	if u, err := url.Parse(swaggerURL); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return ""
}

// parseSwaggerOperations flattens a document's paths into catalog operations,
// in deterministic (tag, operation_id) order via New's normalization later.
func parseSwaggerOperations(doc *swaggerDoc) []Operation {
	var out []Operation
	for pathTemplate, pathItem := range doc.Paths {
		for _, method := range []string{"get", "post", "put", "patch", "delete"} {
			raw, ok := pathItem[method]
			if !ok {
				continue
			}
			var swop swaggerOperation
			if err := json.Unmarshal(raw, &swop); err != nil {
				continue
			}

			upper := strings.ToUpper(method)
			operationID := swop.OperationID
			if operationID == "" {
				operationID = upper + "_" + pathTemplate
			}
			summary := swop.Summary
			if summary == "" {
				summary = swop.Description
			}
			summary = common.Truncate(summary, 2048)
			var tag string
			if len(swop.Tags) > 0 {
				tag = swop.Tags[0]
			}

			var params []ParameterSpec
			for _, p := range swop.Parameters {
				if p.Name == "" {
					continue
				}
				loc := strings.ToLower(p.In)
				if loc != "path" && loc != "query" {
					continue
				}
				typ := p.Schema.Type
				if typ == "" {
					typ = "string"
				}
				params = append(params, ParameterSpec{
					Name:     p.Name,
					In:       loc,
					Required: p.Required,
					Type:     typ,
				})
			}

			resource, action := classifyOperation(upper, pathTemplate)
			out = append(out, Operation{
				OperationID:  operationID,
				Method:       upper,
				PathTemplate: pathTemplate,
				Summary:      summary,
				Tag:          tag,
				Resource:     resource,
				Action:       action,
				Parameters:   params,
			})
		}
	}
	return out
}

// classifyOperation derives the resource/action columns the keyword strategy
// uses for tool selection. Resource is the last non-placeholder path segment;
// action distinguishes unscoped lists ("/airports") from scoped ones
// ("/airports/{airportId}/passengers").
func classifyOperation(method, pathTemplate string) (resource, action string) {
	segments := strings.Split(strings.Trim(pathTemplate, "/"), "/")
	lastStatic := ""
	endsWithPlaceholder := false
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") {
			endsWithPlaceholder = true
			continue
		}
		lastStatic = seg
		endsWithPlaceholder = false
	}
	resource = strings.ToLower(lastStatic)

	switch method {
	case "GET":
		switch {
		case !strings.Contains(pathTemplate, "{"):
			action = "list"
		case endsWithPlaceholder:
			action = "get"
		default:
			action = "list_scoped"
		}
	case "POST":
		action = "create"
	case "PUT", "PATCH":
		action = "update"
	case "DELETE":
		action = "delete"
	}
	return resource, action
}
