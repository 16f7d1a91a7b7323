package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/flytel-agent/internal/cache"
	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
)

// Executor performs resolved calls against the external API. Every outcome is
// a string: response bodies, HTTP error bodies, and transport failures alike
// flow back into the conversation as tool results, never as Go errors.
type Executor struct {
	catalog *catalog.Catalog
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.ResponseCache
	logger  *common.Logger
}

// ExecutorOptions tunes one executor. Zero values mean 30s timeout, no
// rate limiting and no response caching.
type ExecutorOptions struct {
	Timeout   time.Duration
	RateLimit float64
	// CacheTTL enables reuse of successful GET responses for the given
	// duration. CacheSize caps the number of cached responses.
	CacheTTL  time.Duration
	CacheSize int
}

// NewExecutor builds an executor over one catalog.
func NewExecutor(cat *catalog.Catalog, opts ExecutorOptions, logger *common.Logger) *Executor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	var responses *cache.ResponseCache
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = 256
		}
		responses = cache.New(opts.CacheTTL, size)
	}
	return &Executor{
		catalog: cat,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		cache:   responses,
		logger:  logger,
	}
}

// Has reports whether the executor's catalog contains the operation.
func (e *Executor) Has(operationID string) bool {
	_, ok := e.catalog.Get(operationID)
	return ok
}

// RequestLine renders "<METHOD> <url>" for a call, for progress logging.
// Returns false for unknown operations.
func (e *Executor) RequestLine(call ResolvedCall) (string, bool) {
	op, ok := e.catalog.Get(call.OperationID)
	if !ok {
		return "", false
	}
	url := BuildURL(e.catalog.BaseURL, op.PathTemplate, call.PathParams, call.QueryParams)
	return op.Method + " " + url, true
}

// Execute performs one call and returns the normalized string outcome:
// the raw response body on success, the error body (or "HTTP <code>:
// <reason>") on an HTTP error, "Request failed: <reason>" on transport
// failure, and a descriptive string for unknown operation ids.
func (e *Executor) Execute(ctx context.Context, call ResolvedCall) string {
	op, ok := e.catalog.Get(call.OperationID)
	if !ok {
		return fmt.Sprintf("Unknown operation_id: %s", call.OperationID)
	}

	url := BuildURL(e.catalog.BaseURL, op.PathTemplate, call.PathParams, call.QueryParams)

	cacheKey := cache.MakeKey(op.Method, url)
	if e.cache != nil && op.Method == http.MethodGet {
		if body, ok := e.cache.Get(cacheKey); ok {
			e.logger.Debug().
				Str("operation_id", call.OperationID).
				Msg("external API response served from cache")
			return body
		}
	}

	var bodyReader io.Reader
	if call.RequestBody != nil && op.HasBody() {
		encoded, err := json.Marshal(call.RequestBody)
		if err != nil {
			return fmt.Sprintf("Request failed: could not encode body: %v", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Sprintf("Request failed: %v", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, url, bodyReader)
	if err != nil {
		return fmt.Sprintf("Request failed: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.catalog.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.catalog.BearerToken)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn().
			Str("operation_id", call.OperationID).
			Err(err).
			Msg("external API request failed")
		return fmt.Sprintf("Request failed: %v", unwrapURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Request failed: %v", err)
	}

	e.logger.Debug().
		Str("operation_id", call.OperationID).
		Str("method", op.Method).
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("external API call")

	if resp.StatusCode >= 400 {
		if len(bytes.TrimSpace(body)) > 0 {
			return string(body)
		}
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if e.cache != nil {
		if op.Method == http.MethodGet {
			e.cache.Set(cacheKey, string(body))
		} else {
			// A write makes cached reads under the same collection stale.
			e.cache.InvalidatePrefix(staticPathPrefix(op.PathTemplate))
		}
	}
	return string(body)
}

// staticPathPrefix returns the path template up to its first placeholder,
// without the trailing slash.
func staticPathPrefix(template string) string {
	if i := strings.Index(template, "{"); i >= 0 {
		template = template[:i]
	}
	return strings.TrimRight(template, "/")
}

// RouteArgs splits flat per-operation tool arguments into a resolved call.
// Unknown operations report false with a call that still names the id so the
// executor's unknown-operation string stays reachable.
func (e *Executor) RouteArgs(operationID string, args map[string]any) (ResolvedCall, bool) {
	op, ok := e.catalog.Get(operationID)
	if !ok {
		return ResolvedCall{OperationID: operationID}, false
	}
	return Route(op, args), true
}

// ExecuteArgs routes flat per-operation tool arguments and executes the call.
func (e *Executor) ExecuteArgs(ctx context.Context, operationID string, args map[string]any) string {
	call, _ := e.RouteArgs(operationID, args)
	return e.Execute(ctx, call)
}

// ExecuteGeneric handles the generic dispatch tool's argument shape:
// operation_id plus pre-split path_params/query_params/request_body, any of
// which may arrive as a JSON string instead of an object.
func (e *Executor) ExecuteGeneric(ctx context.Context, args map[string]any) string {
	operationID, _ := args["operation_id"].(string)
	call := ResolvedCall{
		OperationID: operationID,
		PathParams:  CoerceParamMap(args["path_params"]),
		QueryParams: CoerceParamMap(args["query_params"]),
		RequestBody: coerceBody(args["request_body"]),
	}
	return e.Execute(ctx, call)
}

// CoerceParamMap normalizes a parameter value that should be an object:
// objects pass through, JSON strings are decoded, anything else (including a
// string that is not valid JSON) becomes an empty map.
func CoerceParamMap(v any) map[string]any {
	switch value := v.(type) {
	case map[string]any:
		return value
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(value), &out); err != nil || out == nil {
			return map[string]any{}
		}
		return out
	default:
		return map[string]any{}
	}
}

func coerceBody(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(value) == "" {
			return nil
		}
		var out any
		if err := json.Unmarshal([]byte(value), &out); err != nil {
			return nil
		}
		return out
	default:
		return value
	}
}

// unwrapURLError strips the "Method \"url\": " prefix url.Error adds, keeping
// the result string close to the underlying reason.
func unwrapURLError(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}
