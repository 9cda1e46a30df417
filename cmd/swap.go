package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"superswap/pkg/swap"
	"superswap/pkg/wallet"
)

var noConfirm bool

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens held by the configured wallet",
	Long: `Quote a swap through Jupiter, sign it with the configured wallet and send it
to Solana. The command waits until the transaction reaches the configured
commitment or its blockhash expires.

IMPORTANT:
  - The wallet key is read from SUPERSWAP_PRIVATE_KEY or private_key in .superswap.yaml
  - You are asked to approve the signature unless --yes is given

Examples:
  superswap swap 1 SOL to USDC
  superswap swap 0.5 SOL to BQpGv6LVWG1JRm1NdjerNSFdChMdAULJr3x9t2Swpump --slippage-bps 100

  # Skip the signing prompt
  superswap swap 1 SOL to USDC --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Sign without asking for confirmation")
	swapCmd.Flags().DurationVar(&quoteTimeout, "timeout", 30*time.Second, "How long to wait for a quote")
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput && !noConfirm {
		printError(fmt.Errorf("--json cannot prompt for confirmation, add --yes"))
		os.Exit(1)
	}

	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	if err := a.cfg.RequireWallet(); err != nil {
		printError(err)
		os.Exit(1)
	}
	keypair, err := wallet.NewKeypairSigner(a.cfg.Solana.PrivateKey)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	pq, err := prepareQuote(cmd.Context(), a, keypair.PublicKey().String(), strings.Join(args, " "), jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !jsonOutput {
		displayQuote(pq)
	}

	var signer swap.Signer = keypair
	if !noConfirm {
		signer = wallet.NewPromptSigner(keypair, os.Stdin, os.Stdout).
			WithSummary(func(tx *solana.Transaction) string {
				return fmt.Sprintf("Transaction has %d instructions, blockhash %s",
					len(tx.Message.Instructions), tx.Message.RecentBlockhash)
			})
	}

	var progress *swapProgress
	if !jsonOutput {
		progress = &swapProgress{}
		unsubscribe := a.session.Subscribe(progress.update)
		defer unsubscribe()
	}

	// the scheduler must not requote underneath the swap
	pq.scheduler.Stop()

	if !a.newExecutor().Execute(cmd.Context(), signer) {
		printError(fmt.Errorf("quote is no longer valid, run the swap again"))
		os.Exit(1)
	}
	progress.stop()

	snap := a.session.Snapshot()
	if jsonOutput {
		output := quoteOutput(pq, string(snap.Status))
		output["signature"] = snap.Signature
		if snap.Failure != nil {
			output["failure_kind"] = string(snap.Failure.Kind)
			output["reason"] = snap.Failure.Reason
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		if snap.Status != swap.StatusSucceeded {
			os.Exit(1)
		}
		return
	}

	displayOutcome(snap)
	if snap.Status != swap.StatusSucceeded {
		if snap.Failure != nil && snap.Failure.Kind == swap.KindSignRejected {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// swapProgress prints execution status changes as they happen
type swapProgress struct {
	mu      sync.Mutex
	last    swap.Status
	spinner *spinner.Spinner
}

func (p *swapProgress) update(snap swap.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Status == p.last {
		return
	}
	p.last = snap.Status

	switch snap.Status {
	case swap.StatusSubmitting:
		fmt.Println("\nBuilding swap transaction...")
	case swap.StatusConfirming:
		fmt.Printf("\nTransaction sent: %s\n", color.CyanString(snap.Signature))
		p.spinner = newSpinner(" Waiting for confirmation...", false)
	default:
		if p.spinner != nil {
			p.spinner.Stop()
			p.spinner = nil
		}
	}
}

func (p *swapProgress) stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.Stop()
		p.spinner = nil
	}
}

func displayOutcome(snap swap.Snapshot) {
	switch snap.Status {
	case swap.StatusSucceeded:
		printSuccess(color.GreenString("✓ Swap confirmed!"))
		fmt.Printf("  Transaction: %s\n", color.CyanString(snap.Signature))
		fmt.Printf("  Explorer:    https://solscan.io/tx/%s\n\n", snap.Signature)
	case swap.StatusFailed:
		if snap.Failure != nil && snap.Failure.Kind == swap.KindSignRejected {
			fmt.Println("\nSwap cancelled.")
			return
		}
		reason := "unknown error"
		if snap.Failure != nil {
			reason = snap.Failure.Reason
		}
		color.Red("\n✗ Swap failed: %s", reason)
		if snap.Signature != "" {
			fmt.Println("\nYou can look the transaction up using:")
			color.Cyan("  superswap status %s\n", snap.Signature)
		}
	default:
		fmt.Printf("\nSwap ended in state %s\n", snap.Status)
	}
}
