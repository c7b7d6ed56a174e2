// Package errs provides the error types returned to web clients.
package errs

import (
	"context"
	"errors"
	"net/http"

	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
	"github.com/ledgerlab/minichain/foundation/blockchain/worker"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap provides access to the wrapped error.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}

// =============================================================================

// rejections are the blockchain errors caused by the content of a request.
var rejections = []error{
	utxo.ErrStructure,
	utxo.ErrTransactionID,
	utxo.ErrUnknownOutput,
	utxo.ErrOwnershipMismatch,
	utxo.ErrSignatureInvalid,
	utxo.ErrBalanceMismatch,
	utxo.ErrDuplicateInput,
	utxo.ErrCoinbaseInvalid,
	utxo.ErrInsufficientFunds,
	database.ErrStructure,
}

// FromBlockchain turns an error returned by the blockchain packages into a
// trusted error with the status code the client should see. Errors that
// don't map to a client problem are returned untouched.
func FromBlockchain(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, database.ErrNotFound):
		return NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, state.ErrNoWorker), errors.Is(err, worker.ErrShutdown):
		return NewTrusted(err, http.StatusServiceUnavailable)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewTrusted(err, http.StatusRequestTimeout)
	}

	for _, rej := range rejections {
		if errors.Is(err, rej) {
			return NewTrusted(err, http.StatusBadRequest)
		}
	}

	return err
}
