package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
)

func newTestExecutor(t *testing.T, handler http.Handler, token string) *Executor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cat := catalog.New(server.URL, token, []catalog.Operation{
		{
			OperationID:  "Settings_GetAirports",
			Method:       "GET",
			PathTemplate: "/airports",
			Tag:          "Settings",
		},
		{
			OperationID:  "Airports_GetPassengers",
			Method:       "GET",
			PathTemplate: "/airports/{airportId}/passengers",
			Tag:          "Airports",
			Parameters: []catalog.ParameterSpec{
				{Name: "airportId", In: "path", Required: true, Type: "string"},
				{Name: "limit", In: "query", Type: "integer"},
			},
		},
		{
			OperationID:  "Airports_Create",
			Method:       "POST",
			PathTemplate: "/airports",
			Tag:          "Airports",
		},
	})
	return NewExecutor(cat, ExecutorOptions{Timeout: 5 * time.Second}, common.NewSilentLogger())
}

func TestExecuteSuccess(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/airports" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing Accept header")
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected Authorization %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`[{"id": "a1", "name": "Oslo Gardermoen"}]`))
	}), "secret")

	result := exec.Execute(context.Background(), ResolvedCall{OperationID: "Settings_GetAirports"})
	if result != `[{"id": "a1", "name": "Oslo Gardermoen"}]` {
		t.Errorf("unexpected result %q", result)
	}
}

func TestExecuteNoBearerWhenUnset(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte("ok"))
	}), "")

	if got := exec.Execute(context.Background(), ResolvedCall{OperationID: "Settings_GetAirports"}); got != "ok" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExecutePathAndQuery(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/airports/a1/passengers" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if _, ok := r.URL.Query()["empty"]; ok {
			t.Error("empty query value must be skipped")
		}
		w.Write([]byte("[]"))
	}), "")

	exec.Execute(context.Background(), ResolvedCall{
		OperationID: "Airports_GetPassengers",
		PathParams:  map[string]any{"airportId": "a1"},
		QueryParams: map[string]any{"limit": 5, "empty": ""},
	})
}

func TestExecuteUnknownOperation(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request must be made for an unknown operation")
	}), "")

	got := exec.Execute(context.Background(), ResolvedCall{OperationID: "Nope_Missing"})
	if got != "Unknown operation_id: Nope_Missing" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExecuteHTTPErrorWithBody(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "airport not found"}`))
	}), "")

	got := exec.Execute(context.Background(), ResolvedCall{OperationID: "Settings_GetAirports"})
	if got != `{"error": "airport not found"}` {
		t.Errorf("expected error body passed through, got %q", got)
	}
}

func TestExecuteHTTPErrorEmptyBody(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), "")

	got := exec.Execute(context.Background(), ResolvedCall{OperationID: "Settings_GetAirports"})
	if got != "HTTP 502: Bad Gateway" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cat := catalog.New(server.URL, "", []catalog.Operation{
		{OperationID: "Settings_GetAirports", Method: "GET", PathTemplate: "/airports"},
	})
	server.Close()
	exec := NewExecutor(cat, ExecutorOptions{Timeout: 2 * time.Second}, common.NewSilentLogger())

	got := exec.Execute(context.Background(), ResolvedCall{OperationID: "Settings_GetAirports"})
	if !strings.HasPrefix(got, "Request failed: ") {
		t.Errorf("expected transport failure string, got %q", got)
	}
}

func TestExecuteBodyOnlyForBodyMethods(t *testing.T) {
	var sawBody string
	var sawContentType string
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sawBody = string(body)
		sawContentType = r.Header.Get("Content-Type")
		w.Write([]byte("ok"))
	}), "")

	exec.Execute(context.Background(), ResolvedCall{
		OperationID: "Airports_Create",
		RequestBody: map[string]any{"name": "Oslo"},
	})
	if sawBody != `{"name":"Oslo"}` || sawContentType != "application/json" {
		t.Errorf("POST body not sent: body=%q content-type=%q", sawBody, sawContentType)
	}

	exec.Execute(context.Background(), ResolvedCall{
		OperationID: "Settings_GetAirports",
		RequestBody: map[string]any{"name": "ignored"},
	})
	if sawBody != "" {
		t.Errorf("GET must not send a body, got %q", sawBody)
	}
}

func TestExecuteGenericCoercesJSONStrings(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/airports/a1/passengers" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte("[]"))
	}), "")

	got := exec.ExecuteGeneric(context.Background(), map[string]any{
		"operation_id": "Airports_GetPassengers",
		"path_params":  `{"airportId": "a1"}`,
		"query_params": "not valid json",
		"request_body": nil,
	})
	if got != "[]" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExecuteGenericUnknownID(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "")
	got := exec.ExecuteGeneric(context.Background(), map[string]any{"operation_id": "Missing"})
	if got != "Unknown operation_id: Missing" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExecuteArgsRoutesFlatArguments(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/airports/a1/passengers" || r.URL.Query().Get("limit") != "3" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte("[]"))
	}), "")

	got := exec.ExecuteArgs(context.Background(), "Airports_GetPassengers", map[string]any{
		"airportId": "a1",
		"limit":     3,
	})
	if got != "[]" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestCoerceParamMap(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want map[string]any
	}{
		{"object", map[string]any{"a": "b"}, map[string]any{"a": "b"}},
		{"json string", `{"a": "b"}`, map[string]any{"a": "b"}},
		{"bad string", "nope", map[string]any{}},
		{"nil", nil, map[string]any{}},
		{"number", 5, map[string]any{}},
	}
	for _, tc := range cases {
		got := CoerceParamMap(tc.in)
		gotJSON, _ := json.Marshal(got)
		wantJSON, _ := json.Marshal(tc.want)
		if string(gotJSON) != string(wantJSON) {
			t.Errorf("%s: got %s, want %s", tc.name, gotJSON, wantJSON)
		}
	}
}

func TestRequestLine(t *testing.T) {
	exec := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "")

	line, ok := exec.RequestLine(ResolvedCall{
		OperationID: "Airports_GetPassengers",
		PathParams:  map[string]any{"airportId": "a1"},
		QueryParams: map[string]any{"limit": 5},
	})
	if !ok {
		t.Fatal("expected known operation")
	}
	if !strings.HasPrefix(line, "GET http") || !strings.Contains(line, "/airports/a1/passengers?limit=5") {
		t.Errorf("unexpected request line %q", line)
	}

	if _, ok := exec.RequestLine(ResolvedCall{OperationID: "Missing"}); ok {
		t.Error("expected unknown operation to report false")
	}
}

func TestExecuteCachesGetResponses(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`[{"id":"a1"}]`))
	}))
	t.Cleanup(server.Close)

	cat := catalog.New(server.URL, "", []catalog.Operation{
		{OperationID: "Settings_GetAirports", Method: "GET", PathTemplate: "/airports", Tag: "Settings"},
		{OperationID: "Airports_Create", Method: "POST", PathTemplate: "/airports", Tag: "Airports"},
	})
	exec := NewExecutor(cat, ExecutorOptions{
		Timeout:  5 * time.Second,
		CacheTTL: time.Minute,
	}, common.NewSilentLogger())

	call := ResolvedCall{OperationID: "Settings_GetAirports"}
	first := exec.Execute(context.Background(), call)
	second := exec.Execute(context.Background(), call)
	if first != second {
		t.Errorf("cached response differs: %q vs %q", first, second)
	}
	if hits != 1 {
		t.Errorf("expected one upstream request, got %d", hits)
	}

	// A write to the same collection invalidates the cached read.
	exec.Execute(context.Background(), ResolvedCall{
		OperationID: "Airports_Create",
		RequestBody: map[string]any{"name": "Oslo"},
	})
	exec.Execute(context.Background(), call)
	if hits != 3 {
		t.Errorf("expected refetch after write, got %d upstream requests", hits)
	}
}

func TestStaticPathPrefix(t *testing.T) {
	cases := map[string]string{
		"/airports":                        "/airports",
		"/airports/{airportId}":            "/airports",
		"/airports/{airportId}/passengers": "/airports",
		"/hotels/{hotelId}/rooms/{roomId}": "/hotels",
	}
	for template, want := range cases {
		if got := staticPathPrefix(template); got != want {
			t.Errorf("staticPathPrefix(%q) = %q, want %q", template, got, want)
		}
	}
}
