package types

import (
	"encoding/json"
	"time"
)

// TokenDescriptor describes a fungible token held by the connected wallet
type TokenDescriptor struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logo_uri"`
	Balance  uint64 `json:"balance"` // base units
}

// SwapParameters holds the user's current swap intent.
// Empty mints or amount mean the field is not set yet.
type SwapParameters struct {
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	Amount      string `json:"amount"`       // human units of the input token
	SlippageBps uint16 `json:"slippage_bps"` // 50 = 0.5%
}

// Complete reports whether both mints and an amount are set
func (p SwapParameters) Complete() bool {
	return p.InputMint != "" && p.OutputMint != "" && p.Amount != ""
}

// Quote is a priced estimate bound to the parameters that produced it
type Quote struct {
	Params               SwapParameters  `json:"params"`
	Seq                  uint64          `json:"seq"`
	InAmount             string          `json:"in_amount"`  // base units
	OutAmount            string          `json:"out_amount"` // base units
	OtherAmountThreshold string          `json:"other_amount_threshold"`
	PriceImpactPct       string          `json:"price_impact_pct"`
	RouteHops            int             `json:"route_hops"`
	FetchedAt            time.Time       `json:"fetched_at"`
	Raw                  json.RawMessage `json:"-"` // replayed verbatim to the build service
}

// BoundTo reports whether the quote was produced for params
func (q *Quote) BoundTo(params SwapParameters) bool {
	return q != nil && q.Params == params
}
