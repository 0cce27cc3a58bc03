package usage

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultModel is the price table key used when a model has no entry of its own.
const DefaultModel = "*"

var perMillion = decimal.NewFromInt(1_000_000)

// Pricing is the USD price per million tokens.
type Pricing struct {
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
}

// PriceTable maps model names to prices.
type PriceTable map[string]Pricing

// Cost prices one call. Unknown models fall back to DefaultModel when present.
func (t PriceTable) Cost(model string, inputTokens, outputTokens int64) (decimal.Decimal, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return decimal.Zero, errors.Join(ErrInvalidUsage,
			fmt.Errorf("negative token count: input=%d output=%d", inputTokens, outputTokens))
	}

	p, ok := t[model]
	if !ok {
		p, ok = t[DefaultModel]
	}
	if !ok {
		return decimal.Zero, errors.Join(ErrUnknownModel, fmt.Errorf("model %q", model))
	}

	in := p.InputPerMillion.Mul(decimal.NewFromInt(inputTokens))
	out := p.OutputPerMillion.Mul(decimal.NewFromInt(outputTokens))
	return in.Add(out).Div(perMillion), nil
}
