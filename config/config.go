package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// WrappedSOLMint is the wrapped SOL mint address
	WrappedSOLMint = "So11111111111111111111111111111111111111112"

	defaultOutputMint = "BQpGv6LVWG1JRm1NdjerNSFdChMdAULJr3x9t2Swpump"
)

// Config holds the application configuration
type Config struct {
	Solana    SolanaConfig
	DASURL    string
	Jupiter   JupiterConfig
	Quote     QuoteConfig
	Discovery DiscoveryConfig
	Defaults  PairConfig
	LogLevel  string
	Metrics   string // listen address for the metrics endpoint, empty disables it
}

// SolanaConfig holds the network and wallet settings
type SolanaConfig struct {
	RPCURL        string
	PrivateKey    string // base58
	Commitment    string
	SkipPreflight bool
	MaxRetries    uint
	PollInterval  time.Duration
}

type JupiterConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type QuoteConfig struct {
	SlippageBps uint16
	Debounce    time.Duration
}

type DiscoveryConfig struct {
	PageSize      int
	RPS           float64
	Burst         int
	IncludeNative bool
	NativeLogo    string
}

// PairConfig is the token pair proposed once the wallet's tokens are known
type PairConfig struct {
	InputMint  string
	OutputMint string
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"rpc-url":      "rpc_url",
	"das-url":      "das_url",
	"jupiter-url":  "jupiter_url",
	"commitment":   "commitment",
	"slippage-bps": "slippage_bps",
	"log-level":    "log.level",
	"metrics-addr": "metrics_addr",
}

// Load reads configuration from the config file, environment variables and flags.
// Environment variables use the SUPERSWAP_ prefix, e.g. SUPERSWAP_RPC_URL or
// SUPERSWAP_QUOTE_DEBOUNCE.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SUPERSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName(".superswap")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	slippage := v.GetInt("slippage_bps")
	if slippage < 0 || slippage > 10_000 {
		return nil, fmt.Errorf("slippage_bps must be between 0 and 10000, got %d", slippage)
	}

	cfg := &Config{
		Solana: SolanaConfig{
			RPCURL:        v.GetString("rpc_url"),
			PrivateKey:    v.GetString("private_key"),
			Commitment:    v.GetString("commitment"),
			SkipPreflight: v.GetBool("skip_preflight"),
			MaxRetries:    v.GetUint("max_retries"),
			PollInterval:  v.GetDuration("poll_interval"),
		},
		DASURL: v.GetString("das_url"),
		Jupiter: JupiterConfig{
			BaseURL: v.GetString("jupiter_url"),
			APIKey:  v.GetString("jupiter_api_key"),
			Timeout: v.GetDuration("jupiter_timeout"),
		},
		Quote: QuoteConfig{
			SlippageBps: uint16(slippage),
			Debounce:    v.GetDuration("quote.debounce"),
		},
		Discovery: DiscoveryConfig{
			PageSize:      v.GetInt("discovery.page_size"),
			RPS:           v.GetFloat64("discovery.rps"),
			Burst:         v.GetInt("discovery.burst"),
			IncludeNative: v.GetBool("discovery.include_native"),
			NativeLogo:    v.GetString("discovery.native_logo"),
		},
		Defaults: PairConfig{
			InputMint:  v.GetString("defaults.input_mint"),
			OutputMint: v.GetString("defaults.output_mint"),
		},
		LogLevel: v.GetString("log.level"),
		Metrics:  v.GetString("metrics_addr"),
	}

	if cfg.DASURL == "" {
		cfg.DASURL = cfg.Solana.RPCURL
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("das_url", "")
	v.SetDefault("jupiter_url", "https://quote-api.jup.ag/v6")
	v.SetDefault("jupiter_api_key", "")
	v.SetDefault("jupiter_timeout", 10*time.Second)
	v.SetDefault("private_key", "")
	v.SetDefault("commitment", "confirmed")
	v.SetDefault("skip_preflight", true)
	v.SetDefault("max_retries", 2)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("slippage_bps", 50)
	v.SetDefault("quote.debounce", 500*time.Millisecond)
	v.SetDefault("discovery.page_size", 100)
	v.SetDefault("discovery.rps", 5.0)
	v.SetDefault("discovery.burst", 1)
	v.SetDefault("discovery.include_native", false)
	v.SetDefault("discovery.native_logo", "")
	v.SetDefault("defaults.input_mint", WrappedSOLMint)
	v.SetDefault("defaults.output_mint", defaultOutputMint)
	v.SetDefault("log.level", "warn")
	v.SetDefault("metrics_addr", "")
}

// RequireWallet checks that a signing key is configured
func (c *Config) RequireWallet() error {
	if c.Solana.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set SUPERSWAP_PRIVATE_KEY environment variable or add private_key to .superswap.yaml")
	}
	return nil
}
