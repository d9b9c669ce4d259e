package forward

import (
	"context"
	"errors"

	"botgate/internal/domain"
)

// Fanout delivers every event to each of its forwarders in order. One
// failing target does not stop the others. A target that reports
// domain.ErrNotFound does not serve the owner; that is only an error when
// no target served it.
type Fanout []domain.Forwarder

func (f Fanout) Forward(ctx context.Context, d domain.Delivery) error {
	var errs, unserved []error
	for _, fw := range f {
		err := fw.Forward(ctx, d)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			unserved = append(unserved, err)
		default:
			errs = append(errs, err)
		}
	}
	if len(f) > 0 && len(unserved) == len(f) {
		return errors.Join(unserved...)
	}
	return errors.Join(errs...)
}

var (
	_ domain.Forwarder = Fanout(nil)
	_ domain.Forwarder = (*NATSForwarder)(nil)
)
