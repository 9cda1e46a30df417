package swap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"superswap/pkg/types"
)

// ParseAmount parses a human-unit amount. An empty string is zero.
func ParseAmount(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return d, nil
}

// ToBaseUnits converts a human-unit amount into the token's smallest unit,
// truncating any precision beyond the token's decimals.
func ToBaseUnits(amount string, decimals uint8) (string, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}
	return d.Shift(int32(decimals)).Truncate(0).String(), nil
}

// QuotableBaseUnits converts amount like ToBaseUnits and fails with
// ErrAmountTooSmall when nothing is left to quote after truncation.
func QuotableBaseUnits(amount string, decimals uint8) (string, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}
	base := d.Shift(int32(decimals)).Truncate(0)
	if !base.IsPositive() {
		return "", fmt.Errorf("%w: %q with %d decimals", ErrAmountTooSmall, amount, decimals)
	}
	return base.String(), nil
}

// ToHumanUnits converts a base-unit integer string into human units
func ToHumanUnits(base string, decimals uint8) (string, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(base), 10)
	if !ok {
		return "", fmt.Errorf("invalid base amount: %q", base)
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String(), nil
}

// FormatBalance renders a token balance in human units
func FormatBalance(token types.TokenDescriptor) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(token.Balance), -int32(token.Decimals)).String()
}

// PriceInfo is the exchange rate implied by a quote
type PriceInfo struct {
	Rate        decimal.Decimal // output tokens per input token
	InputToken  types.TokenDescriptor
	OutputToken types.TokenDescriptor
	InAmount    string // human units
	OutAmount   string // human units
}

// String renders the rate as "1 IN ≈ x OUT"
func (p *PriceInfo) String() string {
	return fmt.Sprintf("1 %s ≈ %s %s", symbolOf(p.InputToken), p.Rate.StringFixed(6), symbolOf(p.OutputToken))
}

// Price computes the rate implied by a quote for the two tokens
func Price(q *types.Quote, in, out types.TokenDescriptor) (*PriceInfo, error) {
	if q == nil {
		return nil, fmt.Errorf("no quote")
	}

	inHuman, err := ToHumanUnits(q.InAmount, in.Decimals)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount in: %w", err)
	}
	outHuman, err := ToHumanUnits(q.OutAmount, out.Decimals)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount out: %w", err)
	}

	inDec, _ := decimal.NewFromString(inHuman)
	outDec, _ := decimal.NewFromString(outHuman)
	if inDec.IsZero() {
		return nil, fmt.Errorf("invalid amount in: 0")
	}

	return &PriceInfo{
		Rate:        outDec.DivRound(inDec, 12),
		InputToken:  in,
		OutputToken: out,
		InAmount:    inHuman,
		OutAmount:   outHuman,
	}, nil
}

func symbolOf(token types.TokenDescriptor) string {
	if token.Symbol != "" {
		return token.Symbol
	}
	if len(token.Address) > 8 {
		return token.Address[:4] + "…" + token.Address[len(token.Address)-4:]
	}
	return token.Address
}
