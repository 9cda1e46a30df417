package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"superswap/pkg/network"
	"superswap/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <signature>",
	Short: "Check the status of a swap transaction",
	Long: `Look up a swap transaction by its signature, searching ledger history.

Examples:
  superswap status 5h6xBEauJ3PK6SWCZ1PGjBvj8vDdWG3KpwATGy1ARAXFSDwt8GFXM7W5Ncn16wmqokgpiKRLuS83KUxyZyv2sUYv
  superswap status <signature> --watch
  superswap status <signature> --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until finalized")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	signature := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	if watchStatus {
		watchSwapStatus(cmd, a.network, signature, jsonOutput)
	} else {
		checkSwapStatus(cmd, a.network, signature, jsonOutput)
	}
}

func checkSwapStatus(cmd *cobra.Command, solana *network.Solana, signature string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	status, err := solana.SignatureStatus(cmd.Context(), signature)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status)
	}
}

func watchSwapStatus(cmd *cobra.Command, solana *network.Solana, signature string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(signature))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		if checkAndDisplayStatus(cmd, solana, signature) {
			return
		}

		select {
		case <-cmd.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// checkAndDisplayStatus reports whether the transaction reached a final state
func checkAndDisplayStatus(cmd *cobra.Command, solana *network.Solana, signature string) bool {
	status, err := solana.SignatureStatus(cmd.Context(), signature)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayStatus(status)
	return status.Err != "" || status.ConfirmationStatus == "finalized"
}

func displayStatus(status *types.SignatureStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Signature: %s\n", color.CyanString(status.Signature))
	fmt.Printf("  Status:    %s\n", getColoredStatus(status))

	if status.Found {
		fmt.Printf("  Slot:      %d\n", status.Slot)
	}
	if status.Err != "" {
		fmt.Printf("  Error:     %s\n", color.RedString(status.Err))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status *types.SignatureStatus) string {
	if !status.Found {
		return color.MagentaString("NOT_FOUND")
	}
	if status.Err != "" {
		return color.RedString("FAILED")
	}

	label := strings.ToUpper(status.ConfirmationStatus)
	switch status.ConfirmationStatus {
	case "finalized":
		return color.GreenString(label)
	case "confirmed", "processed":
		return color.YellowString(label)
	default:
		return label
	}
}
