package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"superswap/pkg/client"
	"superswap/pkg/swap"
	"superswap/pkg/types"
)

const (
	DefaultPageSize = 100
	DefaultRPS      = 5.0

	// NativeDecimals is the precision of lamports
	NativeDecimals uint8 = 9
)

// AssetFetcher returns one page of a wallet's holdings
type AssetFetcher interface {
	GetAssetsByOwner(ctx context.Context, req client.AssetsByOwnerRequest) (*client.AssetPage, error)
}

// Config controls pagination, throttling and the optional default pair
type Config struct {
	PageSize int
	RPS      float64
	Burst    int

	// IncludeNative adds the wallet's SOL balance under NativeMint
	IncludeNative bool
	NativeMint    string
	NativeLogo    string

	DefaultInputMint  string
	DefaultOutputMint string

	Logger  *zap.Logger
	Metrics *swap.Metrics
}

// Discoverer pages through an indexer to build a wallet's token universe
type Discoverer struct {
	fetcher AssetFetcher
	limiter *rate.Limiter
	config  Config
	logger  *zap.Logger
}

// New creates a discoverer backed by fetcher
func New(fetcher AssetFetcher, cfg Config) *Discoverer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Discoverer{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		config:  cfg,
		logger:  logger,
	}
}

// Discover fetches every page of owner's fungible holdings. emit, if set, is
// called after each page with the cumulative set. When a page fails the tokens
// gathered so far are returned together with a *swap.Failure of kind
// swap.KindDiscovery.
func (d *Discoverer) Discover(ctx context.Context, owner string, emit func(page int, tokens []types.TokenDescriptor)) ([]types.TokenDescriptor, error) {
	if owner == "" {
		return nil, swap.DiscoveryFailure(errors.New("owner address is required"))
	}

	logger := d.logger.With(zap.String("owner", owner))
	var tokens []types.TokenDescriptor

	for page := 1; ; page++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return tokens, swap.DiscoveryFailure(err)
		}

		result, err := d.fetcher.GetAssetsByOwner(ctx, client.AssetsByOwnerRequest{
			OwnerAddress: owner,
			Page:         page,
			Limit:        d.config.PageSize,
			DisplayOptions: client.DisplayOptions{
				ShowFungible:      true,
				ShowNativeBalance: d.config.IncludeNative && page == 1,
			},
		})
		if err != nil {
			logger.Warn("discovery aborted", zap.Int("page", page), zap.Error(err))
			return tokens, swap.DiscoveryFailure(err)
		}
		if result == nil {
			return tokens, swap.DiscoveryFailure(fmt.Errorf("empty response for page %d", page))
		}
		d.config.Metrics.DiscoveryPage()

		if page == 1 && d.config.IncludeNative && result.NativeBalance != nil {
			tokens = append(tokens, d.nativeToken(result.NativeBalance.Lamports))
		}

		if len(result.Items) == 0 {
			logger.Debug("discovery complete", zap.Int("pages", page-1), zap.Int("tokens", len(tokens)))
			break
		}

		usable := 0
		for _, item := range result.Items {
			token, ok := normalize(item)
			if !ok {
				continue
			}
			tokens = append(tokens, token)
			usable++
		}
		logger.Debug("page fetched",
			zap.Int("page", page),
			zap.Int("items", len(result.Items)),
			zap.Int("usable", usable))

		d.config.Metrics.DiscoveryTokens(len(tokens))
		if emit != nil {
			emit(page, cloneTokens(tokens))
		}
	}

	d.config.Metrics.DiscoveryTokens(len(tokens))
	return tokens, nil
}

// Load discovers owner's holdings into session. The universe is replaced after
// every page, and the configured default pair is proposed once the first page
// yields more than one usable token.
func (d *Discoverer) Load(ctx context.Context, session *swap.Session, owner string) ([]types.TokenDescriptor, error) {
	emitted := false
	tokens, err := d.Discover(ctx, owner, func(page int, tokens []types.TokenDescriptor) {
		emitted = true
		if replaceErr := session.ReplaceTokens(tokens); replaceErr != nil {
			d.logger.Debug("session rejected tokens", zap.Error(replaceErr))
			return
		}
		if page == 1 && len(tokens) > 1 {
			if session.ProposeDefaultPair(d.config.DefaultInputMint, d.config.DefaultOutputMint) {
				d.logger.Debug("default pair proposed",
					zap.String("input_mint", d.config.DefaultInputMint),
					zap.String("output_mint", d.config.DefaultOutputMint))
			}
		}
	})

	// a wallet holding only SOL never reaches emit
	if err == nil && !emitted && len(tokens) > 0 {
		if replaceErr := session.ReplaceTokens(tokens); replaceErr != nil {
			return tokens, replaceErr
		}
	}
	return tokens, err
}

func (d *Discoverer) nativeToken(lamports uint64) types.TokenDescriptor {
	return types.TokenDescriptor{
		Address:  d.config.NativeMint,
		Symbol:   "SOL",
		Name:     "Solana",
		Decimals: NativeDecimals,
		LogoURI:  d.config.NativeLogo,
		Balance:  lamports,
	}
}

// normalize converts an indexed asset into a token descriptor. Assets of other
// kinds and assets without an image are dropped.
func normalize(item client.Asset) (types.TokenDescriptor, bool) {
	if item.Interface != client.InterfaceFungibleToken && item.Interface != client.InterfaceFungibleAsset {
		return types.TokenDescriptor{}, false
	}
	if item.ID == "" || item.Content == nil || item.Content.Links == nil || item.Content.Links.Image == "" {
		return types.TokenDescriptor{}, false
	}

	token := types.TokenDescriptor{
		Address: item.ID,
		LogoURI: item.Content.Links.Image,
	}
	if meta := item.Content.Metadata; meta != nil {
		token.Symbol = meta.Symbol
		token.Name = meta.Name
	}
	if info := item.TokenInfo; info != nil {
		if token.Symbol == "" {
			token.Symbol = info.Symbol
		}
		if info.Decimals != nil {
			token.Decimals = *info.Decimals
		}
		if info.Balance != nil {
			token.Balance = *info.Balance
		}
	}
	return token, true
}

func cloneTokens(tokens []types.TokenDescriptor) []types.TokenDescriptor {
	out := make([]types.TokenDescriptor, len(tokens))
	copy(out, tokens)
	return out
}
