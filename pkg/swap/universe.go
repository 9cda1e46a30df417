package swap

import (
	"sort"
	"strings"
	"sync"

	"superswap/pkg/types"
)

// Universe holds the token set discovered for the connected wallet.
// A discovery pass replaces the whole set; descriptors are never mutated.
type Universe struct {
	mu     sync.RWMutex
	tokens map[string]types.TokenDescriptor
	order  []string
}

// NewUniverse creates an empty token universe
func NewUniverse() *Universe {
	return &Universe{
		tokens: make(map[string]types.TokenDescriptor),
	}
}

// Replace swaps in a new token set, keeping the order of the slice.
// Later duplicates of an address are ignored.
func (u *Universe) Replace(tokens []types.TokenDescriptor) {
	next := make(map[string]types.TokenDescriptor, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token.Address == "" {
			continue
		}
		if _, exists := next[token.Address]; exists {
			continue
		}
		next[token.Address] = token
		order = append(order, token.Address)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.tokens = next
	u.order = order
}

// Get retrieves a token by mint address
func (u *Universe) Get(address string) (types.TokenDescriptor, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	token, exists := u.tokens[address]
	return token, exists
}

// Exists checks if a token with the given address is known
func (u *Universe) Exists(address string) bool {
	_, exists := u.Get(address)
	return exists
}

// List returns all tokens in discovery order
func (u *Universe) List() []types.TokenDescriptor {
	u.mu.RLock()
	defer u.mu.RUnlock()

	tokens := make([]types.TokenDescriptor, 0, len(u.order))
	for _, address := range u.order {
		tokens = append(tokens, u.tokens[address])
	}
	return tokens
}

// Count returns the number of known tokens
func (u *Universe) Count() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.tokens)
}

// Search returns tokens whose symbol or name contains query, case-insensitively.
// An empty query matches everything.
func (u *Universe) Search(query string) []types.TokenDescriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	all := u.List()
	if query == "" {
		return all
	}

	matches := make([]types.TokenDescriptor, 0)
	for _, token := range all {
		if strings.Contains(strings.ToLower(token.Symbol), query) ||
			strings.Contains(strings.ToLower(token.Name), query) {
			matches = append(matches, token)
		}
	}
	return matches
}

// Resolve finds a token by mint address or symbol.
// Symbol matches prefer the largest balance when several tokens share a symbol.
func (u *Universe) Resolve(ref string) (types.TokenDescriptor, bool) {
	ref = strings.TrimSpace(ref)
	if token, ok := u.Get(ref); ok {
		return token, true
	}

	var candidates []types.TokenDescriptor
	for _, token := range u.List() {
		if strings.EqualFold(token.Symbol, ref) {
			candidates = append(candidates, token)
		}
	}
	if len(candidates) == 0 {
		return types.TokenDescriptor{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Balance > candidates[j].Balance
	})
	return candidates[0], true
}
