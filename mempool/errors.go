package mempool

import (
	"errors"
	"fmt"
)

var (
	// ErrTxInCache is returned to the client if we saw tx earlier
	ErrTxInCache = errors.New("tx already exists in cache")
	// ErrTxInMap is returned when the exact tx is already pooled
	ErrTxInMap = errors.New("tx already exists in map")
	// ErrMempoolIsFull is returned when the configured size limit is hit
	ErrMempoolIsFull = errors.New("mempool is full")
)

// ErrTxTooLarge is returned when a tx exceeds the configured byte cap.
type ErrTxTooLarge struct {
	Max    int
	Actual int
}

func (e ErrTxTooLarge) Error() string {
	return fmt.Sprintf("tx too large. Max size is %d, but got %d", e.Max, e.Actual)
}
