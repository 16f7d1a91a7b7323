package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/llm"
)

func TestResolverKeywordOnly(t *testing.T) {
	r := New("keyword", DefaultKeywordConfig(), keywordCatalog(), Providers{}, common.NewSilentLogger())

	outcome := r.Resolve(context.Background(), "list of airports", nil)
	if outcome.Kind != KindRestricted {
		t.Fatalf("expected Restricted, got %+v", outcome)
	}
	if len(outcome.ToolNames) != 1 || outcome.ToolNames[0] != "Settings_GetAirports" {
		t.Errorf("unexpected restriction %v", outcome.ToolNames)
	}
}

func TestResolverDelegatedFirst(t *testing.T) {
	provider := &fakeProvider{replies: []llm.Message{reply(`{"operation_id": "Settings_GetAirports"}`)}}
	r := New("local", DefaultKeywordConfig(), keywordCatalog(), Providers{Local: provider}, common.NewSilentLogger())

	outcome := r.Resolve(context.Background(), "list of airports", nil)
	if outcome.Kind != KindResolved || outcome.Call.OperationID != "Settings_GetAirports" {
		t.Errorf("expected delegated resolution to win, got %+v", outcome)
	}
}

func TestResolverDelegatedFallsBackToKeyword(t *testing.T) {
	provider := &fakeProvider{replies: []llm.Message{reply("not json at all")}}
	r := New("local", DefaultKeywordConfig(), keywordCatalog(), Providers{Local: provider}, common.NewSilentLogger())

	outcome := r.Resolve(context.Background(), "list of airports", nil)
	if outcome.Kind != KindRestricted {
		t.Fatalf("expected keyword fallback, got %+v", outcome)
	}
	if len(outcome.ToolNames) != 1 || outcome.ToolNames[0] != "Settings_GetAirports" {
		t.Errorf("unexpected restriction %v", outcome.ToolNames)
	}
	if provider.calls != 1 {
		t.Errorf("expected one delegated attempt, got %d", provider.calls)
	}
}

func TestResolverRemoteWithoutKeyUsesLocal(t *testing.T) {
	local := &fakeProvider{replies: []llm.Message{reply(`{"operation_id": "Settings_GetAirports"}`)}}
	remote := &fakeProvider{}
	r := New("remote", DefaultKeywordConfig(), keywordCatalog(), Providers{
		Local:        local,
		Remote:       remote,
		RemoteHasKey: false,
	}, common.NewSilentLogger())

	outcome := r.Resolve(context.Background(), "list of airports", nil)
	if outcome.Kind != KindResolved {
		t.Fatalf("expected Resolved via local, got %+v", outcome)
	}
	if local.calls != 1 || remote.calls != 0 {
		t.Errorf("expected local substitution, local=%d remote=%d", local.calls, remote.calls)
	}
}

func TestResolverRemoteWithKey(t *testing.T) {
	local := &fakeProvider{}
	remote := &fakeProvider{replies: []llm.Message{reply(`{"operation_id": "Settings_GetAirports"}`)}}
	r := New("remote", DefaultKeywordConfig(), keywordCatalog(), Providers{
		Local:        local,
		Remote:       remote,
		RemoteHasKey: true,
	}, common.NewSilentLogger())

	outcome := r.Resolve(context.Background(), "list of airports", nil)
	if outcome.Kind != KindResolved {
		t.Fatalf("expected Resolved via remote, got %+v", outcome)
	}
	if remote.calls != 1 || local.calls != 0 {
		t.Errorf("expected remote to run, local=%d remote=%d", local.calls, remote.calls)
	}
}

func TestResolverFailedStopsChain(t *testing.T) {
	provider := &fakeProvider{errs: []error{fmt.Errorf("%w: gemma3", llm.ErrToolsUnsupported)}}
	r := New("local", DefaultKeywordConfig(), keywordCatalog(), Providers{Local: provider}, common.NewSilentLogger())

	outcome := r.Resolve(context.Background(), "list of airports", nil)
	if outcome.Kind != KindFailed {
		t.Errorf("expected Failed to short-circuit, got %+v", outcome)
	}
}
