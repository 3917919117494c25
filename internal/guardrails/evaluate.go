package guardrails

import (
	"slices"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// Evaluate checks text against cfg. It never fails and depends only on its
// arguments.
//
// A blocked keyword matches as a case-insensitive substring of text. An
// allowed topic matches either as a case-insensitive substring or when the
// English stems of its words appear as a contiguous run in the stemmed text,
// so "automation" covers "automate the deployment". With no topics
// configured every input is in scope.
func Evaluate(text string, cfg Config) dto.GuardrailResult {
	lowered := strings.ToLower(text)

	var keywords []string
	for _, kw := range cfg.BlockedKeywords {
		if strings.Contains(lowered, kw) {
			keywords = append(keywords, kw)
		}
	}

	inScope := len(cfg.AllowedTopics) == 0
	var topics []string
	if !inScope {
		stems := stemTokens(lowered)
		for _, topic := range cfg.AllowedTopics {
			if strings.Contains(lowered, topic) || containsRun(stems, stemTokens(topic)) {
				topics = append(topics, topic)
			}
		}
		inScope = len(topics) > 0
	}

	result := dto.GuardrailResult{
		IsSafe:          len(keywords) == 0,
		IsInScope:       inScope,
		MatchedKeywords: keywords,
		MatchedTopics:   topics,
	}
	if !result.IsSafe {
		result.Reasons = append(result.Reasons, dto.ReasonUnsafe)
	}
	if !result.IsInScope {
		result.Reasons = append(result.Reasons, dto.ReasonOutOfScope)
	}
	if len(result.Reasons) == 0 {
		result.Reasons = []string{dto.ReasonPassed}
	}
	return result
}

// EvaluateContract builds a Config from raw and evaluates text with it. A
// nil raw means no guardrails are configured.
func EvaluateContract(text string, raw map[string]any) (dto.GuardrailResult, error) {
	if raw == nil {
		return Evaluate(text, Unrestricted()), nil
	}
	cfg, err := BuildConfig(raw)
	if err != nil {
		return dto.GuardrailResult{}, err
	}
	return Evaluate(text, cfg), nil
}

func stemTokens(s string) []string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		words[i] = english.Stem(w, true)
	}
	return words
}

func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}
