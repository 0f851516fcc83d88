package common

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTransportTimeout is returned when an outbound call did not complete
// within its configured bound.
var ErrTransportTimeout = errors.New("transport timeout")

// ClassifyTimeout wraps err with ErrTransportTimeout when it was caused by a
// deadline or a network timeout. Other errors are returned unchanged.
func ClassifyTimeout(err error) error {
	if err == nil || errors.Is(err, ErrTransportTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	return err
}
