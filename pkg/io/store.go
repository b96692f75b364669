package io

import (
	"context"
	"errors"
	"fmt"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

// Store persists the observations of one run. Implementations only ever
// append.
type Store interface {
	Append(ctx context.Context, set scraper.ObservationSet) error
}

// MultiStore appends to every store, even when an earlier one fails.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, set scraper.ObservationSet) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, set); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
