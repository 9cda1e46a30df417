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
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"superswap/pkg/parser"
	"superswap/pkg/swap"
	"superswap/pkg/types"
)

var quoteTimeout time.Duration

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Get a swap quote without executing it",
	Long: `Discover the wallet's tokens and fetch a Jupiter quote for the swap.
Tokens may be given by symbol or mint address.

Examples:
  superswap quote 1 SOL to USDC
  superswap quote 1 SOL to USDC --slippage-bps 100
  superswap quote 25 USDC to BQpGv6LVWG1JRm1NdjerNSFdChMdAULJr3x9t2Swpump --owner <address>`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&ownerAddr, "owner", "", "Wallet address (defaults to the configured wallet)")
	quoteCmd.Flags().DurationVar(&quoteTimeout, "timeout", 30*time.Second, "How long to wait for a quote")
}

func runQuote(cmd *cobra.Command, args []string) {
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

	pq, err := prepareQuote(cmd.Context(), a, owner, strings.Join(args, " "), jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(quoteOutput(pq, "quoted"), "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayQuote(pq)
}

// preparedQuote is a session holding a quote for a parsed command
type preparedQuote struct {
	scheduler *swap.Scheduler
	input     types.TokenDescriptor
	output    types.TokenDescriptor
	snapshot  swap.Snapshot
	price     *swap.PriceInfo

	// known is false when the output mint is not held and its decimals are unknown
	known bool
}

// prepareQuote discovers owner's tokens, applies the parsed command to the
// session and waits for the scheduler to deliver a quote
func prepareQuote(ctx context.Context, a *app, owner, command string, quiet bool) (*preparedQuote, error) {
	parsed, err := parser.ParseSwapCommand(command)
	if err != nil {
		return nil, err
	}

	amount, err := swap.ParseAmount(parsed.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	discoverCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	s := newSpinner(" Discovering tokens...", quiet)
	_, err = a.discoverer.Load(discoverCtx, a.session, owner)
	s.Stop()
	if err != nil {
		if a.session.Universe().Count() == 0 {
			return nil, err
		}
		color.Yellow("\nDiscovery stopped early, continuing with partial token list: %v", err)
	}

	input, err := a.resolveToken(parsed.Input)
	if err != nil {
		return nil, err
	}
	output, known, err := a.resolveOutput(parsed.Output)
	if err != nil {
		return nil, err
	}
	// the scheduler skips amounts that round to zero base units, so reject them before waiting
	if _, err := swap.QuotableBaseUnits(parsed.Amount, input.Decimals); err != nil {
		return nil, err
	}

	if held, err := decimal.NewFromString(swap.FormatBalance(input)); err == nil && amount.GreaterThan(held) && !quiet {
		color.Yellow("\nWarning: amount exceeds wallet balance of %s %s", held.String(), input.Symbol)
	}

	scheduler := a.newScheduler()

	quoteCtx, cancelQuote := context.WithTimeout(ctx, quoteTimeout)
	defer cancelQuote()

	s = newSpinner(" Fetching quote...", quiet)
	snap, err := a.waitForQuote(quoteCtx, scheduler, func() error {
		return a.session.SetParameters(types.SwapParameters{
			InputMint:   input.Address,
			OutputMint:  output.Address,
			Amount:      parsed.Amount,
			SlippageBps: a.session.Snapshot().Params.SlippageBps,
		})
	})
	s.Stop()
	if err != nil {
		return nil, err
	}

	pq := &preparedQuote{
		scheduler: scheduler,
		input:     input,
		output:    output,
		snapshot:  snap,
		known:     known,
	}
	if known {
		pq.price, _ = swap.Price(snap.Quote, input, output)
	}
	return pq, nil
}

func quoteOutput(pq *preparedQuote, status string) map[string]interface{} {
	q := pq.snapshot.Quote
	output := map[string]interface{}{
		"session":          pq.snapshot.ID,
		"input_mint":       q.Params.InputMint,
		"output_mint":      q.Params.OutputMint,
		"amount":           q.Params.Amount,
		"in_amount":        q.InAmount,
		"out_amount":       q.OutAmount,
		"min_out_amount":   q.OtherAmountThreshold,
		"price_impact_pct": q.PriceImpactPct,
		"route_hops":       q.RouteHops,
		"slippage_bps":     q.Params.SlippageBps,
		"status":           status,
	}
	if pq.price != nil {
		output["rate"] = pq.price.Rate.String()
	}
	return output
}

func displayQuote(pq *preparedQuote) {
	q := pq.snapshot.Quote

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", q.Params.Amount, color.YellowString(pq.input.Symbol))
	fmt.Printf("  To:                ~%s %s\n", humanAmount(q.OutAmount, pq.output, pq.known), color.YellowString(pq.output.Symbol))
	fmt.Printf("  Minimum Received:  %s %s\n", humanAmount(q.OtherAmountThreshold, pq.output, pq.known), color.YellowString(pq.output.Symbol))
	if pq.price != nil {
		fmt.Printf("  Rate:              %s\n", pq.price.String())
	}
	fmt.Printf("  Price Impact:      %s%%\n", q.PriceImpactPct)
	fmt.Printf("  Slippage:          %d bps\n", q.Params.SlippageBps)
	fmt.Printf("  Route Hops:        %d\n", q.RouteHops)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// humanAmount renders a base-unit amount, falling back to the raw value when
// the token's decimals are unknown
func humanAmount(base string, token types.TokenDescriptor, known bool) string {
	if base == "" {
		return "-"
	}
	if !known {
		return base + " (base units)"
	}
	human, err := swap.ToHumanUnits(base, token.Decimals)
	if err != nil {
		return base
	}
	return human
}

func newSpinner(suffix string, quiet bool) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = suffix
	if !quiet {
		s.Start()
	}
	return s
}
