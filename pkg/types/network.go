package types

import "github.com/gagliardetto/solana-go"

// QuoteRequest is what the quoting service needs to price a swap
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	AmountBase  string // input amount in the input token's smallest unit
	SlippageBps uint16
}

// ValidityWindow is the network reference point used to track transaction expiry
type ValidityWindow struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// SignatureStatus is a condensed view of a transaction's confirmation state
type SignatureStatus struct {
	Signature          string `json:"signature"`
	Found              bool   `json:"found"`
	Slot               uint64 `json:"slot,omitempty"`
	ConfirmationStatus string `json:"confirmation_status,omitempty"`
	Err                string `json:"err,omitempty"`
}
