package waiter

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TimeoutError is returned when a receipt or block did not arrive within the
// wait bound. Hash is set for receipt waits, Block for block waits.
type TimeoutError struct {
	Hash    common.Hash
	Block   uint64
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Hash != (common.Hash{}) {
		return fmt.Sprintf("transaction %v not mined within %v", e.Hash.Hex(), e.Timeout)
	}
	return fmt.Sprintf("block %v not reached within %v", e.Block, e.Timeout)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
