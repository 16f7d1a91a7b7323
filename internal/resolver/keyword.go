package resolver

import (
	"context"
	"strings"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/llm"
)

// KeywordRule maps one trigger keyword to the operations it selects:
// Resource names a catalog classification column value; Substrings are the
// fallback match against operation id and summary when an operation carries
// no resource classification.
type KeywordRule struct {
	Substrings []string
	Resource   string
}

// KeywordConfig is the full keyword table plus the list-intent phrases. It is
// a constructed value passed into the strategy, so different sessions can run
// different tables without sharing state.
type KeywordConfig struct {
	Rules             map[string]KeywordRule
	ListIntentPhrases []string
}

// DefaultKeywordConfig returns the table for the Flytel travel API.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		Rules: map[string]KeywordRule{
			"airport":   {Substrings: []string{"airport", "airports"}, Resource: "airports"},
			"passenger": {Substrings: []string{"passenger", "passengers"}, Resource: "passengers"},
			"hotel":     {Substrings: []string{"hotel", "hotels"}, Resource: "hotels"},
			"flytel":    {Substrings: []string{"flytel"}},
			"flight":    {Substrings: []string{"flight", "flights"}},
			"dashboard": {Substrings: []string{"dashboard"}},
			"settings":  {Substrings: []string{"settings"}},
		},
		ListIntentPhrases: []string{"list", "get me the list", "show all", "all the", "list of"},
	}
}

// KeywordStrategy narrows the tool set by matching configured keywords
// against the utterance. It never resolves a call by itself: the model still
// chooses the tool and fills the arguments from the restricted set.
type KeywordStrategy struct {
	config  KeywordConfig
	catalog *catalog.Catalog
}

// NewKeywordStrategy builds the strategy over one catalog.
func NewKeywordStrategy(config KeywordConfig, cat *catalog.Catalog) *KeywordStrategy {
	return &KeywordStrategy{config: config, catalog: cat}
}

func (s *KeywordStrategy) Name() string { return "keyword" }

// MatchesIntent reports whether the utterance mentions any configured
// keyword at all. The dispatch loop uses this to decide whether external
// tools enter the conversation.
func (s *KeywordStrategy) MatchesIntent(utterance string) bool {
	lower := strings.ToLower(utterance)
	for keyword := range s.config.Rules {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Resolve produces a Restricted outcome. Zero keyword hits, or a filter that
// would leave nothing, both fall back to the full operation set so the model
// is never handed an empty toolbox.
func (s *KeywordStrategy) Resolve(_ context.Context, utterance string, _ []llm.Message) Outcome {
	lower := strings.ToLower(utterance)
	wantList := false
	for _, phrase := range s.config.ListIntentPhrases {
		if strings.Contains(lower, phrase) {
			wantList = true
			break
		}
	}

	wantedResources := map[string]bool{}
	var matchSubstrings []string
	for keyword, rule := range s.config.Rules {
		if !strings.Contains(lower, keyword) {
			continue
		}
		matchSubstrings = append(matchSubstrings, rule.Substrings...)
		if rule.Resource != "" {
			wantedResources[rule.Resource] = true
		}
	}

	all := s.allToolNames()
	if len(matchSubstrings) == 0 && len(wantedResources) == 0 {
		return Restricted(all)
	}

	var filtered []string
	for _, op := range s.catalog.Operations() {
		if !s.matchesKeywords(op, wantedResources, matchSubstrings) {
			continue
		}
		if wantList {
			if op.Action != "list" && op.Action != "list_scoped" && op.HasPathParams() {
				continue
			}
		}
		filtered = append(filtered, op.OperationID)
	}
	if len(filtered) == 0 {
		return Restricted(all)
	}
	return Restricted(filtered)
}

// matchesKeywords applies the resource-first rule: an operation classified
// with a wanted resource passes; an unclassified operation falls back to the
// substring match; an operation classified with a different resource is out.
func (s *KeywordStrategy) matchesKeywords(op catalog.Operation, wantedResources map[string]bool, substrings []string) bool {
	haystack := strings.ToLower(op.OperationID + " " + op.Summary)
	if len(wantedResources) > 0 {
		if op.Resource != "" {
			return wantedResources[op.Resource]
		}
		return containsAny(haystack, substrings)
	}
	return containsAny(haystack, substrings)
}

func (s *KeywordStrategy) allToolNames() []string {
	ops := s.catalog.Operations()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.OperationID
	}
	return names
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
