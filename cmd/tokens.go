package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"superswap/pkg/swap"
	"superswap/pkg/types"
	"superswap/pkg/wallet"
)

var (
	filterSymbol string
	ownerAddr    string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List the fungible tokens held by a wallet",
	Long: `List the fungible tokens held by your wallet, as reported by the DAS indexer.
Tokens without an image are not shown.

Examples:
  superswap tokens
  superswap tokens --symbol USDC
  superswap tokens --owner 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol or name")
	tokensCmd.Flags().StringVar(&ownerAddr, "owner", "", "Wallet address (defaults to the configured wallet)")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	owner, err := resolveOwner(a, ownerAddr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Discovering tokens..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	_, err = a.discoverer.Load(ctx, a.session, owner)
	if !jsonOutput {
		s.Stop()
	}

	filtered := a.session.Universe().Search(filterSymbol)
	if err != nil {
		if len(filtered) == 0 {
			printError(err)
			os.Exit(1)
		}
		color.Yellow("\nDiscovery stopped early, showing partial results: %v", err)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(owner, filtered)
	}
}

// resolveOwner picks the wallet to inspect: an explicit address or the configured key
func resolveOwner(a *app, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if err := a.cfg.RequireWallet(); err != nil {
		return "", fmt.Errorf("%w, or pass --owner", err)
	}
	signer, err := wallet.NewKeypairSigner(a.cfg.Solana.PrivateKey)
	if err != nil {
		return "", err
	}
	return signer.PublicKey().String(), nil
}

func displayTokens(owner string, tokens []types.TokenDescriptor) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              WALLET TOKENS")
	fmt.Println(strings.Repeat("=", 90))
	fmt.Printf("\n  Owner: %s\n\n", color.CyanString(owner))

	for _, token := range tokens {
		symbol := token.Symbol
		if symbol == "" {
			symbol = "?"
		}

		fmt.Printf("  %-10s  %24s  %2d decimals  %s\n",
			color.YellowString(symbol),
			swap.FormatBalance(token),
			token.Decimals,
			color.HiBlackString(token.Address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(tokens))
}

// shortAddress truncates a mint address for display
func shortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:4] + "..." + address[len(address)-4:]
}
