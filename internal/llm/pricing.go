package llm

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Pricing holds per-million-token rates for a model, in USD. Decimal
// arithmetic keeps accumulated cost exact across many small calls.
type Pricing struct {
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
}

// PricingForModel returns the rate card for a model name, falling back
// to a conservative default for unknown models.
func PricingForModel(model string) Pricing {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt-4o-mini"):
		return Pricing{
			InputPerMTok:  decimal.NewFromFloat(0.15),
			OutputPerMTok: decimal.NewFromFloat(0.60),
		}
	case strings.Contains(m, "gpt-4o"):
		return Pricing{
			InputPerMTok:  decimal.NewFromFloat(2.50),
			OutputPerMTok: decimal.NewFromFloat(10.00),
		}
	case strings.Contains(m, "haiku"):
		return Pricing{
			InputPerMTok:  decimal.NewFromFloat(0.80),
			OutputPerMTok: decimal.NewFromFloat(4.00),
		}
	case strings.Contains(m, "sonnet"):
		return Pricing{
			InputPerMTok:  decimal.NewFromFloat(3.00),
			OutputPerMTok: decimal.NewFromFloat(15.00),
		}
	default:
		return Pricing{
			InputPerMTok:  decimal.NewFromFloat(3.00),
			OutputPerMTok: decimal.NewFromFloat(15.00),
		}
	}
}

var million = decimal.NewFromInt(1_000_000)

// Cost computes the USD cost of a call from its token usage.
func (p Pricing) Cost(inputTokens, outputTokens int) decimal.Decimal {
	in := p.InputPerMTok.Mul(decimal.NewFromInt(int64(inputTokens))).Div(million)
	out := p.OutputPerMTok.Mul(decimal.NewFromInt(int64(outputTokens))).Div(million)
	return in.Add(out)
}
