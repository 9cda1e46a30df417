package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Asset interfaces reported by the indexer for fungible holdings
const (
	InterfaceFungibleToken = "FungibleToken"
	InterfaceFungibleAsset = "FungibleAsset"
)

// AssetsByOwnerRequest are the getAssetsByOwner parameters
type AssetsByOwnerRequest struct {
	OwnerAddress   string         `json:"ownerAddress"`
	Page           int            `json:"page"`
	Limit          int            `json:"limit"`
	DisplayOptions DisplayOptions `json:"displayOptions"`
}

// DisplayOptions selects which holdings the indexer includes
type DisplayOptions struct {
	ShowFungible      bool `json:"showFungible"`
	ShowNativeBalance bool `json:"showNativeBalance,omitempty"`
}

// AssetPage is one page of a wallet's holdings
type AssetPage struct {
	Total         int            `json:"total"`
	Limit         int            `json:"limit"`
	Page          int            `json:"page"`
	Items         []Asset        `json:"items"`
	NativeBalance *NativeBalance `json:"nativeBalance,omitempty"`
}

// Asset is a single indexed holding. Any field may be missing.
type Asset struct {
	ID        string        `json:"id"`
	Interface string        `json:"interface"`
	Content   *AssetContent `json:"content,omitempty"`
	TokenInfo *TokenInfo    `json:"token_info,omitempty"`
}

type AssetContent struct {
	Metadata *AssetMetadata `json:"metadata,omitempty"`
	Links    *AssetLinks    `json:"links,omitempty"`
}

type AssetMetadata struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type AssetLinks struct {
	Image string `json:"image"`
}

type TokenInfo struct {
	Symbol   string  `json:"symbol,omitempty"`
	Decimals *uint8  `json:"decimals,omitempty"`
	Balance  *uint64 `json:"balance,omitempty"`
}

// NativeBalance is the wallet's SOL balance
type NativeBalance struct {
	Lamports uint64 `json:"lamports"`
}

// DASClient talks to a Digital Asset Standard indexer over JSON-RPC
type DASClient struct {
	rpc jsonrpc.RPCClient
}

// NewDASClient creates a new indexer client for endpoint
func NewDASClient(endpoint string, timeout time.Duration) *DASClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DASClient{
		rpc: jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: timeout},
		}),
	}
}

// GetAssetsByOwner fetches one page of holdings
func (c *DASClient) GetAssetsByOwner(ctx context.Context, req AssetsByOwnerRequest) (*AssetPage, error) {
	var page AssetPage
	if err := c.rpc.CallFor(ctx, &page, "getAssetsByOwner", req); err != nil {
		return nil, fmt.Errorf("failed to get assets for %s (page %d): %w", req.OwnerAddress, req.Page, err)
	}
	return &page, nil
}
