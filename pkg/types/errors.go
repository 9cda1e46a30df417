package types

import "errors"

// Errors reported by external collaborators that the swap core tells apart.
var (
	// ErrUserDeclined is returned by a signer when the user refuses to sign
	ErrUserDeclined = errors.New("user declined")

	// ErrBlockHeightExceeded is returned when a transaction was not settled
	// before the network passed its last valid block height
	ErrBlockHeightExceeded = errors.New("block height exceeded")

	// ErrTransactionFailed is returned when the network settled a transaction
	// with an execution error
	ErrTransactionFailed = errors.New("transaction failed")
)
