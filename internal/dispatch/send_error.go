package dispatch

import (
	"errors"
	"fmt"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

// SendError carries a sender's failure classification. Permanent failures
// (invalid recipient, 4xx) are recorded and never retried; transient ones
// (timeout, 429, 5xx) go through the dispatcher's backoff loop.
type SendError struct {
	Provider  string
	Reason    string
	Permanent bool
	Err       error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

func (e *SendError) Is(target error) bool {
	if e.Permanent {
		return target == domain.ErrPermanentSend
	}
	return target == domain.ErrTransientSend
}

func permanentErr(provider, reason string) error {
	return &SendError{Provider: provider, Reason: reason, Permanent: true}
}

func transientErr(provider, reason string, err error) error {
	return &SendError{Provider: provider, Reason: reason, Err: err}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, domain.ErrPermanentSend)
}
