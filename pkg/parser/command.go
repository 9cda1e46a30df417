package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// SwapCommand is a parsed "<amount> <token> to <token>" request. Tokens are
// symbols or mint addresses and are resolved against the wallet's holdings later.
type SwapCommand struct {
	Amount string
	Input  string
	Output string
}

// Mint addresses are case sensitive, so only the keywords are matched case-insensitively
var swapPattern = regexp.MustCompile(`(?i)^(?:swap\s+)?(\d+(?:\.\d*)?|\.\d+)\s+(\S+)\s+(?:to|for|->)\s+(\S+)$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 SOL to USDC"
//   - "0.5 sol to BQpGv6LVWG1JRm1NdjerNSFdChMdAULJr3x9t2Swpump"
//   - "100 USDC for SOL"
func ParseSwapCommand(command string) (*SwapCommand, error) {
	command = strings.Join(strings.Fields(command), " ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: '<amount> <token> to <token>' (e.g., '1 SOL to USDC')")
	}

	cmd := &SwapCommand{
		Amount: matches[1],
		Input:  NormalizeToken(matches[2]),
		Output: NormalizeToken(matches[3]),
	}
	if err := ValidateSwapCommand(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// ValidateSwapCommand validates that a swap command has all required fields
func ValidateSwapCommand(cmd *SwapCommand) error {
	if cmd.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if cmd.Input == "" {
		return fmt.Errorf("source token is required")
	}
	if cmd.Output == "" {
		return fmt.Errorf("destination token is required")
	}
	if cmd.Input == cmd.Output {
		return fmt.Errorf("source and destination token must differ")
	}
	return nil
}

// IsMintAddress reports whether ref decodes to a 32-byte public key rather than being a symbol
func IsMintAddress(ref string) bool {
	_, err := solana.PublicKeyFromBase58(ref)
	return err == nil
}

// NormalizeToken upper-cases symbols and maps common aliases. Mint addresses
// are returned unchanged.
func NormalizeToken(ref string) string {
	ref = strings.TrimSpace(ref)
	if IsMintAddress(ref) {
		return ref
	}

	symbol := strings.ToUpper(strings.TrimPrefix(ref, "$"))

	aliases := map[string]string{
		"WSOL": "SOL",
	}
	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}
	return symbol
}
