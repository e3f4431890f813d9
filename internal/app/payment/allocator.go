package payment

import (
	"context"
	"errors"
	"math/rand"

	"github.com/axegao/axegaoshop/internal/app/registry"
)

// The value space has only 100 members; after this many failed draws the
// set is saturated (or the store is down) and waiting longer will not help.
const maxAllocateAttempts = 150

var ErrFingerprintsExhausted = errors.New("no free payment fingerprint")

// Allocator hands out fingerprints that are unique among all currently
// pending payments, across every worker sharing the registry.
type Allocator struct {
	reg registry.Registry
}

func NewAllocator(reg registry.Registry) *Allocator {
	return &Allocator{reg: reg}
}

func (a *Allocator) Allocate(ctx context.Context) (Fingerprint, error) {
	for i := 0; i < maxAllocateAttempts; i++ {
		fp := Fingerprint(rand.Intn(100))
		ok, err := a.reg.Reserve(ctx, fp.String())
		if err != nil {
			// store trouble counts as a collision, never a grant
			continue
		}
		if ok {
			return fp, nil
		}
	}
	return 0, ErrFingerprintsExhausted
}

func (a *Allocator) Release(ctx context.Context, fp Fingerprint) error {
	return a.reg.Release(ctx, fp.String())
}
