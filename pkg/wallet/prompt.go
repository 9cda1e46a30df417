package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"

	"superswap/pkg/types"
)

// Signer is a wallet signing capability
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// PromptSigner asks the user before every signature. Anything but y or yes
// declines with types.ErrUserDeclined.
type PromptSigner struct {
	next   Signer
	out    io.Writer
	mu     sync.Mutex
	reader *bufio.Reader
	detail func(tx *solana.Transaction) string
}

// NewPromptSigner wraps next with an interactive confirmation read from in
func NewPromptSigner(next Signer, in io.Reader, out io.Writer) *PromptSigner {
	return &PromptSigner{
		next:   next,
		out:    out,
		reader: bufio.NewReader(in),
	}
}

// WithSummary sets a function describing the transaction shown before the prompt
func (p *PromptSigner) WithSummary(detail func(tx *solana.Transaction) string) *PromptSigner {
	p.detail = detail
	return p
}

func (p *PromptSigner) PublicKey() solana.PublicKey {
	return p.next.PublicKey()
}

func (p *PromptSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	p.mu.Lock()
	approved := p.confirm(tx)
	p.mu.Unlock()

	if !approved {
		return nil, types.ErrUserDeclined
	}
	return p.next.SignTransaction(ctx, tx)
}

func (p *PromptSigner) confirm(tx *solana.Transaction) bool {
	if p.detail != nil {
		fmt.Fprintln(p.out, p.detail(tx))
	}
	fmt.Fprintf(p.out, "\nSign swap transaction with %s? (y/N): ", p.next.PublicKey())

	response, err := p.reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
