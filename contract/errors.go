package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNoFallback is returned when invoking the fallback (or receive) entry of
	// a contract whose ABI does not declare one.
	ErrNoFallback = errors.New("contract has no fallback function")

	// ErrNotDeployed is returned by calls against a handle that has no address yet.
	ErrNotDeployed = errors.New("contract handle is not bound to an address")

	// ErrNoMatchingOverload is returned when none of the overloads of a function
	// accepts the supplied arguments.
	ErrNoMatchingOverload = errors.New("no overload matches the supplied arguments")

	// ErrNotPayable is returned when value is attached to a non-payable call.
	ErrNotPayable = errors.New("function is not payable")
)

// BindingError is returned when an ABI cannot be turned into a contract handle.
// No partial handle is ever returned together with a BindingError.
type BindingError struct {
	Name   string
	Reason string
}

func (e *BindingError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("contract binding failed: %v", e.Reason)
	}
	return fmt.Sprintf("contract binding failed for %v: %v", e.Name, e.Reason)
}

// DeploymentError is returned when a deployment transaction was mined but did
// not leave a contract behind.
type DeploymentError struct {
	Reason  string
	Receipt *types.Receipt
}

func (e *DeploymentError) Error() string {
	if e.Receipt == nil {
		return fmt.Sprintf("deploy contract failed: %v", e.Reason)
	}
	return fmt.Sprintf("deploy contract failed: %v (tx: %v, block: %v, status: %v)", e.Reason, e.Receipt.TxHash.Hex(), e.Receipt.BlockNumber, e.Receipt.Status)
}
