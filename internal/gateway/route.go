package gateway

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
)

// ResolvedCall is one fully-specified operation invocation, ready for the
// executor. OperationID must name a catalog entry; the executor reports
// unknown ids as a result string rather than failing.
type ResolvedCall struct {
	OperationID string
	PathParams  map[string]any
	QueryParams map[string]any
	RequestBody any
}

// Route splits flat tool-call arguments into path and query parameter maps
// using the operation's parameter specs. Arguments absent from the input are
// skipped, arguments matching no spec are dropped. The body comes from the
// request_body key, falling back to body.
func Route(op catalog.Operation, args map[string]any) ResolvedCall {
	call := ResolvedCall{
		OperationID: op.OperationID,
		PathParams:  map[string]any{},
		QueryParams: map[string]any{},
	}
	for _, p := range op.Parameters {
		v, ok := args[p.Name]
		if !ok {
			continue
		}
		switch p.In {
		case "path":
			call.PathParams[p.Name] = v
		case "query":
			call.QueryParams[p.Name] = v
		}
	}
	if body, ok := args["request_body"]; ok && body != nil {
		call.RequestBody = body
	} else if body, ok := args["body"]; ok && body != nil {
		call.RequestBody = body
	}
	return call
}

// FillPathTemplate substitutes {name} placeholders with the given values.
// Placeholders without a value are left verbatim so the failure is visible in
// the resulting request.
func FillPathTemplate(template string, pathParams map[string]any) string {
	result := template
	for key, value := range pathParams {
		result = strings.ReplaceAll(result, "{"+key+"}", fmt.Sprint(value))
	}
	return result
}

// BuildURL assembles the request URL: base + filled path + encoded query.
// Query values that are nil or render to the empty string are skipped.
func BuildURL(baseURL, pathTemplate string, pathParams, queryParams map[string]any) string {
	path := FillPathTemplate(pathTemplate, pathParams)
	full := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		full += "/"
	}
	full += path

	q := url.Values{}
	for key, value := range queryParams {
		if value == nil {
			continue
		}
		s := fmt.Sprint(value)
		if s == "" {
			continue
		}
		q.Set(key, s)
	}
	if len(q) > 0 {
		full += "?" + q.Encode()
	}
	return full
}
