// Package catalog loads and models the external API operation catalog.
//
// The catalog is read from a SQLite metadata store populated offline by
// flytel-sync; the application process never parses OpenAPI documents itself.
// A Catalog is immutable once loaded, so concurrent reads need no locking.
package catalog

import (
	"sort"
	"strings"
)

// allowedMethods is the whitelist of HTTP methods for catalog operations.
var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

// ParameterSpec describes one path or query parameter of an operation.
type ParameterSpec struct {
	Name     string `json:"name"`
	In       string `json:"in"` // "path" or "query"
	Required bool   `json:"required"`
	Type     string `json:"type"` // JSON Schema type hint; "string" when absent
}

// Operation is one addressable external API action.
type Operation struct {
	OperationID  string
	Method       string
	PathTemplate string
	Summary      string
	Tag          string
	// Resource and Action are optional classification columns used by the
	// keyword resolution strategy (e.g. resource "airports", action "list").
	Resource   string
	Action     string
	Parameters []ParameterSpec
}

// HasPathParams reports whether the operation's path template contains
// placeholders.
func (op Operation) HasPathParams() bool {
	return strings.Contains(op.PathTemplate, "{")
}

// PathParameters returns the specs with In == "path".
func (op Operation) PathParameters() []ParameterSpec {
	var out []ParameterSpec
	for _, p := range op.Parameters {
		if p.In == "path" {
			out = append(out, p)
		}
	}
	return out
}

// HasBody reports whether the operation's method carries a JSON request body.
func (op Operation) HasBody() bool {
	switch op.Method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// Catalog is the full set of operations for one external API source, plus the
// base URL and bearer credential. Read-only after construction.
type Catalog struct {
	BaseURL     string
	BearerToken string

	ops   map[string]Operation
	order []string
}

// New builds a Catalog from a list of operations. Operations with an empty id,
// an unsupported method, or a duplicate id are dropped. Ordering is normalized
// to (tag, operation_id) so synthesized tool lists stay deterministic.
func New(baseURL, bearerToken string, operations []Operation) *Catalog {
	c := &Catalog{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		BearerToken: bearerToken,
		ops:         make(map[string]Operation, len(operations)),
	}
	for _, op := range operations {
		op.Method = strings.ToUpper(strings.TrimSpace(op.Method))
		if op.OperationID == "" || !allowedMethods[op.Method] {
			continue
		}
		if _, dup := c.ops[op.OperationID]; dup {
			continue
		}
		c.ops[op.OperationID] = op
		c.order = append(c.order, op.OperationID)
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		a, b := c.ops[c.order[i]], c.ops[c.order[j]]
		if a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		return a.OperationID < b.OperationID
	})
	return c
}

// Get looks up an operation by id.
func (c *Catalog) Get(operationID string) (Operation, bool) {
	op, ok := c.ops[operationID]
	return op, ok
}

// Operations returns all operations in stable (tag, operation_id) order.
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.ops[id])
	}
	return out
}

// Len returns the number of operations in the catalog.
func (c *Catalog) Len() int {
	return len(c.order)
}
