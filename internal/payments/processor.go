package payments

import (
	"context"
	"time"
)

// AccountStatus reports whether a coach's connected account can take
// charges and receive payouts.
type AccountStatus struct {
	ChargesEnabled bool
	PayoutsEnabled bool
}

type HoldInput struct {
	AmountCents        int64
	DestinationAccount string
	Metadata           map[string]string

	// IdempotencyKey collapses duplicate submissions at the processor
	// boundary. After an unknown outcome, callers reconcile the persisted
	// hold reference via RetrieveHold rather than resubmitting.
	IdempotencyKey string
}

// HoldState is the processor-side status of a hold.
type HoldState string

const (
	HoldActive    HoldState = "active"
	HoldCaptured  HoldState = "captured"
	HoldCancelled HoldState = "cancelled"
)

// Hold is a hold's processor-side truth, used to reconcile after an
// undetermined outcome instead of blind-retrying.
type Hold struct {
	State     HoldState
	ChargeRef string // set once captured
}

// StaleHold is an uncaptured hold old enough that the engine should have
// settled it already.
type StaleHold struct {
	HoldRef  string
	Metadata map[string]string
	Created  time.Time
}

// Processor is the payment-processor contract the engine depends on.
// Calls are blocking I/O with no local side effects; local state changes
// only after a result returns. A timeout is an unknown outcome: reconcile,
// never blind-retry with a fresh key.
type Processor interface {
	// CreateHold reserves funds without moving money (manual capture).
	CreateHold(ctx context.Context, in HoldInput) (holdRef string, err error)

	// Capture confirms a hold and completes the charge.
	Capture(ctx context.Context, holdRef string) (chargeRef string, err error)

	// CancelHold releases a hold that will never be captured.
	CancelHold(ctx context.Context, holdRef string) error

	// RetrieveHold re-checks a hold's processor-side state. Callers use it
	// before creating a replacement hold and before treating a capture
	// failure as a decline.
	RetrieveHold(ctx context.Context, holdRef string) (Hold, error)

	// ListStaleHolds returns uncaptured holds created before cutoff, for
	// the orphan-hold reconciliation sweep.
	ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]StaleHold, error)

	// Refund returns amountCents of a captured charge; amountCents <= 0
	// means a full refund.
	Refund(ctx context.Context, chargeRef string, amountCents int64, idempotencyKey string) (refundRef string, err error)

	RetrieveAccount(ctx context.Context, accountID string) (AccountStatus, error)
}
