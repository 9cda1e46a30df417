package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"superswap/pkg/types"
)

// DefaultJupiterURL is the public Jupiter v6 swap API
const DefaultJupiterURL = "https://quote-api.jup.ag/v6"

// JupiterClient prices swaps and builds swap transactions through the Jupiter API
type JupiterClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewJupiterClient creates a new Jupiter API client. apiKey may be empty.
func NewJupiterClient(baseURL, apiKey string, timeout time.Duration) *JupiterClient {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &JupiterClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// quoteResponse holds the fields read from a quote; the full body is kept verbatim
type quoteResponse struct {
	InputMint            string            `json:"inputMint"`
	OutputMint           string            `json:"outputMint"`
	InAmount             string            `json:"inAmount"`
	OutAmount            string            `json:"outAmount"`
	OtherAmountThreshold string            `json:"otherAmountThreshold"`
	PriceImpactPct       string            `json:"priceImpactPct"`
	RoutePlan            []json.RawMessage `json:"routePlan"`
}

type swapRequest struct {
	UserPublicKey    string          `json:"userPublicKey"`
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

// swapResponse keeps only the transaction. Its validity window is read from
// the network after signing.
type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// Quote requests a price for req
func (c *JupiterClient) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	query := url.Values{}
	query.Set("inputMint", req.InputMint)
	query.Set("outputMint", req.OutputMint)
	query.Set("amount", req.AmountBase)
	query.Set("slippageBps", strconv.Itoa(int(req.SlippageBps)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}

	body, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if resp.OutAmount == "" {
		return nil, fmt.Errorf("empty quote response")
	}

	return &types.Quote{
		InAmount:             resp.InAmount,
		OutAmount:            resp.OutAmount,
		OtherAmountThreshold: resp.OtherAmountThreshold,
		PriceImpactPct:       resp.PriceImpactPct,
		RouteHops:            len(resp.RoutePlan),
		FetchedAt:            time.Now(),
		Raw:                  json.RawMessage(body),
	}, nil
}

// BuildSwapTransaction returns the base64 unsigned transaction that executes q for owner
func (c *JupiterClient) BuildSwapTransaction(ctx context.Context, owner solana.PublicKey, q *types.Quote) (string, error) {
	if q == nil || len(q.Raw) == 0 {
		return "", fmt.Errorf("quote has no service payload")
	}

	payload, err := json.Marshal(swapRequest{
		UserPublicKey:    owner.String(),
		QuoteResponse:    q.Raw,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to build swap transaction: %w", err)
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("empty swap transaction")
	}

	return resp.SwapTransaction, nil
}

func (c *JupiterClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

// apiError extracts the service's error message from body when there is one
func apiError(status int, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("API returned status code %d", status)
	}

	var errorResp map[string]interface{}
	if err := json.Unmarshal(body, &errorResp); err == nil {
		for _, key := range []string{"error", "message"} {
			if message, ok := errorResp[key].(string); ok && message != "" {
				return fmt.Errorf("API error (status %d): %s", status, message)
			}
		}
		if errs, ok := errorResp["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", status, errs)
		}
	}

	return fmt.Errorf("API error (status %d): %s", status, strings.TrimSpace(string(body)))
}
