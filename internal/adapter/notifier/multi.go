package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/semmidev/oraexport/internal/domain"
)

// Multi fans a report out to every channel. One failing channel does not
// stop the others.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", n, err))
		}
	}
	return errors.Join(errs...)
}
