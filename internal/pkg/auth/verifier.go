// internal/pkg/auth/verifier.go
package auth

import (
	"context"
	"errors"
)

// Chain accepts a token if any of its verifiers does, trying them in order
type Chain []Verifier

// Verify implements Verifier
func (c Chain) Verify(ctx context.Context, token string) (*Identity, error) {
	var errs []error
	for _, v := range c {
		id, err := v.Verify(ctx, token)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrInvalidToken
	}
	return nil, errors.Join(errs...)
}
