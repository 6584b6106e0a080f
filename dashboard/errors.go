package dashboard

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyActive   = errors.New("dashboard is already active")
	ErrNotActive       = errors.New("dashboard is not active")
	ErrChannelMismatch = errors.New("dashboard lives in another channel")
	ErrMessageNotFound = errors.New("dashboard message not found")
)

// ChannelMismatchError is returned by Refresh when the persisted dashboard
// belongs to a different channel than the one asking.
type ChannelMismatchError struct {
	Requested  int64
	Configured int64
}

func (e *ChannelMismatchError) Error() string {
	return fmt.Sprintf("dashboard lives in channel %v, not %v", e.Configured, e.Requested)
}

func (e *ChannelMismatchError) Is(target error) bool {
	return target == ErrChannelMismatch
}
