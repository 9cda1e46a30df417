package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "superswap",
	Short: "A CLI for swapping Solana tokens through the Jupiter aggregator",
	Long: `superswap discovers the fungible tokens held by your wallet, quotes a swap
through the Jupiter aggregator and executes it on Solana. The quote is refreshed
whenever the swap parameters change and the swap is tracked until it settles or
its blockhash expires.

Examples:
  superswap tokens
  superswap quote 1 SOL to USDC
  superswap swap 0.5 SOL to BQpGv6LVWG1JRm1NdjerNSFdChMdAULJr3x9t2Swpump
  superswap status <signature>`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.superswap.yaml)")
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	flags.BoolP("json", "j", false, "Output in JSON format")

	flags.String("rpc-url", "", "Solana RPC endpoint")
	flags.String("das-url", "", "DAS indexer endpoint (defaults to the RPC endpoint)")
	flags.String("jupiter-url", "", "Jupiter swap API base URL")
	flags.String("commitment", "", "Commitment level: processed, confirmed or finalized")
	flags.Uint16("slippage-bps", 0, "Slippage tolerance in basis points")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
