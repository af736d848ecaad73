// Package reference implements the deterministic, zero-cost classifier
// over hand-authored merchant and keyword rules.
package reference

import (
	"sort"
	"strings"

	"github.com/finsift/finsift/internal/model"
)

// Matcher evaluates transactions against an ordered set of reference
// rules. It is pure and safe for concurrent use: rules are copied and
// normalized at construction and never mutated afterwards.
type Matcher struct {
	rules []model.ReferenceRule
}

// NewMatcher creates a matcher over the given rules, sorted by priority
// (highest first). Inactive rules are dropped up front.
func NewMatcher(rules []model.ReferenceRule) *Matcher {
	active := make([]model.ReferenceRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	return &Matcher{rules: active}
}

// RuleCount returns the number of active rules.
func (m *Matcher) RuleCount() int {
	return len(m.rules)
}

// Classify matches a transaction against the rule set. It returns the
// best match and true, or a zero result and false if nothing fired.
//
// The amount sign never selects a rule on its own: a positive amount
// with no rule match yields a low-confidence income-leaning result so
// the orchestrator routes it to AI instead of accepting it.
func (m *Matcher) Classify(description string, amount float64, merchant string) (model.ClassificationResult, bool) {
	text := strings.ToUpper(strings.TrimSpace(description))
	merchantText := strings.ToUpper(strings.TrimSpace(merchant))

	var best model.ClassificationResult
	bestConfidence := -1.0

	for _, rule := range m.rules {
		confidence, ok := m.scoreRule(rule, text, merchantText)
		if !ok {
			continue
		}
		if confidence > bestConfidence {
			bestConfidence = confidence
			best = model.ClassificationResult{
				Category:           rule.Category,
				TaxCategory:        rule.TaxCategory,
				IsTaxDeductible:    rule.IsTaxDeductible,
				BusinessUsePercent: rule.BusinessUsePercent,
				Confidence:         confidence,
				Reasoning:          "matched reference rule: " + rule.Name,
				Source:             model.SourceReference,
			}
		}
	}

	if bestConfidence >= 0 {
		return best.Normalized(), true
	}

	if amount > 0 {
		return model.ClassificationResult{
			Category:   "Income",
			Confidence: 0.4,
			Reasoning:  "positive amount with no rule match; income-leaning guess",
			Source:     model.SourceReference,
		}, true
	}

	return model.ClassificationResult{}, false
}

// scoreRule reports whether a rule fires and the resulting confidence.
// A merchant fragment hit uses the rule's base confidence directly;
// keyword hits scale the base confidence by the fraction matched.
func (m *Matcher) scoreRule(rule model.ReferenceRule, text, merchantText string) (float64, bool) {
	for _, frag := range rule.MerchantFragments {
		frag = strings.ToUpper(frag)
		if frag == "" {
			continue
		}
		if strings.Contains(merchantText, frag) || strings.Contains(text, frag) {
			return rule.BaseConfidence, true
		}
	}

	if len(rule.Keywords) == 0 {
		return 0, false
	}

	matched := 0
	for _, kw := range rule.Keywords {
		if strings.Contains(text, strings.ToUpper(kw)) {
			matched++
		}
	}
	if matched == 0 {
		return 0, false
	}

	fraction := float64(matched) / float64(len(rule.Keywords))
	return rule.BaseConfidence * fraction, true
}
