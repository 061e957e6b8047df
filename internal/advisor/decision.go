// Package advisor defines the decision input contract with the external
// advisor and its validation boundary. Decisions arrive as JSON and are
// parsed strictly: unknown fields, a missing operation, or a missing
// operation-specific sub-object are rejected before any execution logic
// runs.
package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"leverbot/internal/domain"
	"leverbot/internal/ports"

	"github.com/go-playground/validator/v10"
)

// BuyParams are the required parameters of a Buy decision.
type BuyParams struct {
	Pricing  float64 `json:"pricing" validate:"gt=0"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Leverage int     `json:"leverage" validate:"gte=1"`
}

// SellParams are the required parameters of a Sell decision. Percentage is
// the fraction of the open position to exit, in percent; 100 closes it.
type SellParams struct {
	Percentage float64 `json:"percentage" validate:"gt=0,lte=100"`
}

// AdjustProfitParams carries optional protection-level adjustments on a
// Hold decision. A nil field leaves the corresponding level untouched.
type AdjustProfitParams struct {
	StopLoss   *float64 `json:"stopLoss,omitempty" validate:"omitempty,gt=0"`
	TakeProfit *float64 `json:"takeProfit,omitempty" validate:"omitempty,gt=0"`
}

// Decision is one proposed action for one symbol.
type Decision struct {
	Operation    domain.Operation    `json:"operation" validate:"required,oneof=BUY SELL HOLD"`
	Buy          *BuyParams          `json:"buy,omitempty"`
	Sell         *SellParams         `json:"sell,omitempty"`
	AdjustProfit *AdjustProfitParams `json:"adjustProfit,omitempty"`
	Chat         string              `json:"chat"`
}

// HasAdjustments reports whether a Hold decision carries protection-level
// changes.
func (d *Decision) HasAdjustments() bool {
	return d.AdjustProfit != nil && (d.AdjustProfit.StopLoss != nil || d.AdjustProfit.TakeProfit != nil)
}

var validate = validator.New()

// Parse decodes and validates a raw decision. Any structural or semantic
// problem is reported wrapping ports.ErrInvalidDecision so callers can
// distinguish malformed input from execution failures.
func Parse(raw []byte) (*Decision, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var d Decision
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidDecision, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after decision object", ports.ErrInvalidDecision)
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate enforces the operation-specific contract on an already-decoded
// decision: a Buy must carry buy parameters and a Sell must carry sell
// parameters; Hold sub-objects are optional.
func Validate(d *Decision) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrInvalidDecision, err)
	}

	switch d.Operation {
	case domain.OpBuy:
		if d.Buy == nil {
			return fmt.Errorf("%w: BUY decision is missing the buy parameters", ports.ErrInvalidDecision)
		}
	case domain.OpSell:
		if d.Sell == nil {
			return fmt.Errorf("%w: SELL decision is missing the sell parameters", ports.ErrInvalidDecision)
		}
	}
	return nil
}
