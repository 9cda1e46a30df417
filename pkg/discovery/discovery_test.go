package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zeebo/assert"
	"go.uber.org/zap/zaptest"

	"superswap/pkg/client"
	"superswap/pkg/swap"
	"superswap/pkg/types"
)

const (
	owner      = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	wsolMint   = "So11111111111111111111111111111111111111112"
	tokenXMint = "BQpGv6LVWG1JRm1NdjerNSFdChMdAULJr3x9t2Swpump"
)

type fakeFetcher struct {
	pages    map[int]*client.AssetPage
	failAt   int
	requests []client.AssetsByOwnerRequest
}

func (f *fakeFetcher) GetAssetsByOwner(ctx context.Context, req client.AssetsByOwnerRequest) (*client.AssetPage, error) {
	f.requests = append(f.requests, req)
	if f.failAt == req.Page {
		return nil, errors.New("indexer unavailable")
	}
	if page, ok := f.pages[req.Page]; ok {
		return page, nil
	}
	return &client.AssetPage{Page: req.Page}, nil
}

func u8(v uint8) *uint8    { return &v }
func u64(v uint64) *uint64 { return &v }

func fungible(id, symbol string, decimals uint8, balance uint64) client.Asset {
	return client.Asset{
		ID:        id,
		Interface: client.InterfaceFungibleToken,
		Content: &client.AssetContent{
			Metadata: &client.AssetMetadata{Symbol: symbol, Name: symbol + " token"},
			Links:    &client.AssetLinks{Image: "https://img/" + symbol + ".png"},
		},
		TokenInfo: &client.TokenInfo{Decimals: u8(decimals), Balance: u64(balance)},
	}
}

func newTestDiscoverer(t *testing.T, fetcher AssetFetcher, cfg Config) *Discoverer {
	t.Helper()
	cfg.RPS = 1000
	cfg.Logger = zaptest.NewLogger(t)
	return New(fetcher, cfg)
}

func TestDiscoverPaginatesUntilEmptyPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {Items: []client.Asset{fungible(wsolMint, "SOL", 9, 5), fungible(tokenXMint, "TOKX", 6, 7)}},
		2: {Items: []client.Asset{fungible("mint-3", "AAA", 2, 1)}},
		4: {Items: []client.Asset{fungible("never", "NOPE", 1, 1)}},
	}}
	d := newTestDiscoverer(t, fetcher, Config{PageSize: 2})

	var emitted [][]types.TokenDescriptor
	tokens, err := d.Discover(context.Background(), owner, func(page int, tokens []types.TokenDescriptor) {
		emitted = append(emitted, tokens)
	})
	assert.NoError(t, err)
	assert.Equal(t, len(tokens), 3)
	assert.Equal(t, len(fetcher.requests), 3)

	for i, req := range fetcher.requests {
		assert.Equal(t, req.Page, i+1)
		assert.Equal(t, req.Limit, 2)
		assert.Equal(t, req.OwnerAddress, owner)
		assert.True(t, req.DisplayOptions.ShowFungible)
		assert.False(t, req.DisplayOptions.ShowNativeBalance)
	}

	assert.Equal(t, len(emitted), 2)
	assert.Equal(t, len(emitted[0]), 2)
	assert.Equal(t, len(emitted[1]), 3)
	assert.Equal(t, emitted[1][2].Address, "mint-3")
}

func TestDiscoverFiltersAndNormalizes(t *testing.T) {
	noImage := fungible("no-image", "NOIMG", 6, 1)
	noImage.Content.Links = nil

	nft := fungible("nft", "NFT", 0, 1)
	nft.Interface = "V1_NFT"

	bare := client.Asset{
		ID:        "bare",
		Interface: client.InterfaceFungibleAsset,
		Content:   &client.AssetContent{Links: &client.AssetLinks{Image: "https://img/bare.png"}},
	}

	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {Items: []client.Asset{noImage, nft, bare, fungible(tokenXMint, "TOKX", 6, 42)}},
	}}

	tokens, err := newTestDiscoverer(t, fetcher, Config{}).Discover(context.Background(), owner, nil)
	assert.NoError(t, err)
	assert.Equal(t, len(tokens), 2)

	assert.Equal(t, tokens[0], types.TokenDescriptor{Address: "bare", LogoURI: "https://img/bare.png"})
	assert.Equal(t, tokens[1].Symbol, "TOKX")
	assert.Equal(t, tokens[1].Name, "TOKX token")
	assert.Equal(t, tokens[1].Decimals, 6)
	assert.Equal(t, tokens[1].Balance, 42)
	assert.Equal(t, fetcher.requests[0].Limit, DefaultPageSize)
}

func TestDiscoverKeepsPartialResultsOnFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*client.AssetPage{
			1: {Items: []client.Asset{fungible(wsolMint, "SOL", 9, 5), fungible(tokenXMint, "TOKX", 6, 7)}},
		},
		failAt: 2,
	}
	reg := prometheus.NewRegistry()
	metrics, err := swap.NewMetrics(reg)
	assert.NoError(t, err)

	emits := 0
	d := newTestDiscoverer(t, fetcher, Config{Metrics: metrics})
	tokens, err := d.Discover(context.Background(), owner, func(int, []types.TokenDescriptor) { emits++ })

	assert.Error(t, err)
	kind, ok := swap.FailureKindOf(err)
	assert.True(t, ok)
	assert.Equal(t, kind, swap.KindDiscovery)
	assert.Equal(t, len(tokens), 2)
	assert.Equal(t, emits, 1)
	assert.Equal(t, len(fetcher.requests), 2)

	expected := `
# HELP superswap_discovery_pages_total Asset pages fetched from the indexing service.
# TYPE superswap_discovery_pages_total counter
superswap_discovery_pages_total 1
# HELP superswap_discovery_tokens Usable tokens found by the last discovery pass.
# TYPE superswap_discovery_tokens gauge
superswap_discovery_tokens 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"superswap_discovery_pages_total", "superswap_discovery_tokens"))
}

func TestDiscoverWaitsOnLimiter(t *testing.T) {
	fetcher := &fakeFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDiscoverer(t, fetcher, Config{}).Discover(ctx, owner, nil)
	assert.That(t, errors.Is(err, context.Canceled))
	assert.Equal(t, len(fetcher.requests), 0)
}

func TestDiscoverRequiresOwner(t *testing.T) {
	_, err := newTestDiscoverer(t, &fakeFetcher{}, Config{}).Discover(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestDiscoverIncludesNativeBalance(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {
			Items:         []client.Asset{fungible(tokenXMint, "TOKX", 6, 7)},
			NativeBalance: &client.NativeBalance{Lamports: 1_500_000_000},
		},
	}}
	d := newTestDiscoverer(t, fetcher, Config{IncludeNative: true, NativeMint: wsolMint, NativeLogo: "https://img/sol.png"})

	tokens, err := d.Discover(context.Background(), owner, nil)
	assert.NoError(t, err)
	assert.Equal(t, len(tokens), 2)
	assert.Equal(t, tokens[0].Address, wsolMint)
	assert.Equal(t, tokens[0].Decimals, NativeDecimals)
	assert.Equal(t, tokens[0].Balance, 1_500_000_000)
	assert.True(t, fetcher.requests[0].DisplayOptions.ShowNativeBalance)
	assert.False(t, fetcher.requests[1].DisplayOptions.ShowNativeBalance)
}

func TestLoadPopulatesSessionAndProposesPair(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {Items: []client.Asset{fungible(wsolMint, "SOL", 9, 5), fungible(tokenXMint, "TOKX", 6, 7)}},
		2: {Items: []client.Asset{fungible("mint-3", "AAA", 2, 1)}},
	}}
	session := swap.NewSession(50, zaptest.NewLogger(t))
	d := newTestDiscoverer(t, fetcher, Config{DefaultInputMint: wsolMint, DefaultOutputMint: tokenXMint})

	var sizes []int
	unsubscribe := session.Subscribe(func(s swap.Snapshot) { sizes = append(sizes, s.Tokens) })
	defer unsubscribe()

	tokens, err := d.Load(context.Background(), session, owner)
	assert.NoError(t, err)
	assert.Equal(t, len(tokens), 3)
	assert.Equal(t, session.Universe().Count(), 3)

	snap := session.Snapshot()
	assert.Equal(t, snap.Params.InputMint, wsolMint)
	assert.Equal(t, snap.Params.OutputMint, tokenXMint)

	for i := 1; i < len(sizes); i++ {
		assert.That(t, sizes[i] >= sizes[i-1])
	}
}

func TestLoadKeepsUserPair(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {Items: []client.Asset{fungible(wsolMint, "SOL", 9, 5), fungible(tokenXMint, "TOKX", 6, 7)}},
	}}
	session := swap.NewSession(50, zaptest.NewLogger(t))
	assert.NoError(t, session.SetOutputMint("user-choice"))

	d := newTestDiscoverer(t, fetcher, Config{DefaultInputMint: wsolMint, DefaultOutputMint: tokenXMint})
	_, err := d.Load(context.Background(), session, owner)
	assert.NoError(t, err)

	snap := session.Snapshot()
	assert.Equal(t, snap.Params.InputMint, "")
	assert.Equal(t, snap.Params.OutputMint, "user-choice")
}

func TestLoadSingleTokenSkipsDefaultPair(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {Items: []client.Asset{fungible(tokenXMint, "TOKX", 6, 7)}},
	}}
	session := swap.NewSession(50, zaptest.NewLogger(t))

	d := newTestDiscoverer(t, fetcher, Config{DefaultInputMint: wsolMint, DefaultOutputMint: tokenXMint})
	_, err := d.Load(context.Background(), session, owner)
	assert.NoError(t, err)
	assert.Equal(t, session.Snapshot().Params.InputMint, "")
	assert.Equal(t, session.Universe().Count(), 1)
}

func TestLoadNativeOnlyWallet(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {NativeBalance: &client.NativeBalance{Lamports: 10}},
	}}
	session := swap.NewSession(50, zaptest.NewLogger(t))

	d := newTestDiscoverer(t, fetcher, Config{IncludeNative: true, NativeMint: wsolMint})
	tokens, err := d.Load(context.Background(), session, owner)
	assert.NoError(t, err)
	assert.Equal(t, len(tokens), 1)
	assert.True(t, session.Universe().Exists(wsolMint))
}

func ExampleDiscoverer_Discover() {
	fetcher := &fakeFetcher{pages: map[int]*client.AssetPage{
		1: {Items: []client.Asset{fungible(tokenXMint, "TOKX", 6, 2_500_000)}},
	}}
	tokens, _ := New(fetcher, Config{RPS: 100}).Discover(context.Background(), owner, nil)
	for _, token := range tokens {
		fmt.Println(token.Symbol, swap.FormatBalance(token))
	}
	// Output: TOKX 2.5
}
