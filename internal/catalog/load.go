package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bobmcallan/flytel-agent/internal/common"
)

// LoadOptions identifies one API source in the metadata store. SourceID takes
// precedence over SourceName when both are set.
type LoadOptions struct {
	DatabasePath string
	SourceName   string
	SourceID     int64
	BearerToken  string
}

// Load reads one API source and its operations from the SQLite metadata store.
//
// Missing configuration, a missing database file, or a source with no rows all
// return (nil, nil): the gateway is simply disabled for the session. The
// connection is opened, queried, and closed here — the catalog is never
// re-read mid-session, so callers see no partial state.
func Load(ctx context.Context, opts LoadOptions, logger *common.Logger) (*Catalog, error) {
	if opts.DatabasePath == "" {
		return nil, nil
	}
	if opts.SourceName == "" && opts.SourceID <= 0 {
		return nil, nil
	}
	if _, err := os.Stat(opts.DatabasePath); os.IsNotExist(err) {
		logger.Warn().Str("path", opts.DatabasePath).Msg("metadata store not found, external gateway disabled")
		return nil, nil
	}

	db, err := sql.Open("sqlite3", opts.DatabasePath)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open metadata store, external gateway disabled")
		return nil, nil
	}
	defer db.Close()

	var sourceID int64
	var baseURL string
	if opts.SourceID > 0 {
		err = db.QueryRowContext(ctx,
			"SELECT id, base_url FROM api_sources WHERE id = ?", opts.SourceID,
		).Scan(&sourceID, &baseURL)
	} else {
		err = db.QueryRowContext(ctx,
			"SELECT id, base_url FROM api_sources WHERE name = ?", opts.SourceName,
		).Scan(&sourceID, &baseURL)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Warn().Err(err).Msg("metadata store query failed, external gateway disabled")
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT operation_id, method, path_template, summary, tag, resource, action, parameters_schema
		FROM api_operations
		WHERE api_source_id = ?
		ORDER BY tag, operation_id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var operations []Operation
	for rows.Next() {
		var op Operation
		var summary, tag, resource, action, paramsJSON sql.NullString
		if err := rows.Scan(&op.OperationID, &op.Method, &op.PathTemplate,
			&summary, &tag, &resource, &action, &paramsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		op.Summary = summary.String
		op.Tag = tag.String
		op.Resource = strings.ToLower(strings.TrimSpace(resource.String))
		op.Action = strings.ToLower(strings.TrimSpace(action.String))
		op.Parameters = parseParameters(paramsJSON.String)
		operations = append(operations, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read operation rows: %w", err)
	}
	if len(operations) == 0 {
		return nil, nil
	}

	cat := New(baseURL, opts.BearerToken, operations)
	logger.Info().
		Str("base_url", cat.BaseURL).
		Int("operations", cat.Len()).
		Msg("operation catalog loaded")
	return cat, nil
}

// parseParameters decodes the parameters_schema JSON column into specs.
// The stored shape mirrors OpenAPI parameter objects:
//
//	[{"name": "airportId", "in": "path", "required": true, "schema": {"type": "string"}}]
//
// Entries without a name, or outside path/query, are dropped. A malformed
// column yields no parameters rather than a load failure.
func parseParameters(raw string) []ParameterSpec {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var entries []struct {
		Name     string `json:"name"`
		In       string `json:"in"`
		Required bool   `json:"required"`
		Type     string `json:"type"`
		Schema   struct {
			Type string `json:"type"`
		} `json:"schema"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	var specs []ParameterSpec
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		loc := strings.ToLower(e.In)
		if loc == "" {
			loc = "query"
		}
		if loc != "path" && loc != "query" {
			continue
		}
		typ := e.Schema.Type
		if typ == "" {
			typ = e.Type
		}
		if typ == "" {
			typ = "string"
		}
		specs = append(specs, ParameterSpec{
			Name:     e.Name,
			In:       loc,
			Required: e.Required,
			Type:     typ,
		})
	}
	return specs
}
