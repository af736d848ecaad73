package llm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPricingCost(t *testing.T) {
	p := Pricing{
		InputPerMTok:  decimal.NewFromFloat(0.15),
		OutputPerMTok: decimal.NewFromFloat(0.60),
	}

	// 1M input tokens at $0.15 plus 500k output tokens at $0.60.
	cost := p.Cost(1_000_000, 500_000)
	assert.True(t, cost.Equal(decimal.NewFromFloat(0.45)), "got %s", cost)

	assert.True(t, p.Cost(0, 0).IsZero())
}

func TestPricingForModel(t *testing.T) {
	tests := []struct {
		model     string
		wantInput string
	}{
		{"gpt-4o-mini", "0.15"},
		{"gpt-4o", "2.5"},
		{"claude-3-5-haiku-latest", "0.8"},
		{"claude-sonnet-4", "3"},
		{"some-unknown-model", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p := PricingForModel(tt.model)
			assert.True(t, p.InputPerMTok.Equal(decimal.RequireFromString(tt.wantInput)),
				"got %s", p.InputPerMTok)
		})
	}
}
