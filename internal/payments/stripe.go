package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/account"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

// StripeProcessor implements Processor on manual-capture PaymentIntents.
// Holds are uncaptured intents, capture completes the charge, and coach
// payouts ride on the intent's transfer destination.
type StripeProcessor struct {
	currency string
}

func NewStripeProcessor(secretKey, currency string) *StripeProcessor {
	stripe.Key = secretKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeProcessor{currency: currency}
}

func (p *StripeProcessor) CreateHold(ctx context.Context, in HoldInput) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(in.AmountCents),
		Currency:      stripe.String(p.currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.DestinationAccount != "" {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(in.DestinationAccount),
		}
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create hold: %w", err)
	}
	return pi.ID, nil
}

func (p *StripeProcessor) Capture(ctx context.Context, holdRef string) (string, error) {
	pi, err := paymentintent.Capture(holdRef, &stripe.PaymentIntentCaptureParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return "", fmt.Errorf("stripe capture %s: %w", holdRef, err)
	}
	if pi.LatestCharge != nil {
		return pi.LatestCharge.ID, nil
	}
	return pi.ID, nil
}

func (p *StripeProcessor) CancelHold(ctx context.Context, holdRef string) error {
	_, err := paymentintent.Cancel(holdRef, &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return fmt.Errorf("stripe cancel hold %s: %w", holdRef, err)
	}
	return nil
}

func (p *StripeProcessor) RetrieveHold(ctx context.Context, holdRef string) (Hold, error) {
	pi, err := paymentintent.Get(holdRef, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return Hold{}, fmt.Errorf("stripe retrieve hold %s: %w", holdRef, err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		h := Hold{State: HoldCaptured, ChargeRef: pi.ID}
		if pi.LatestCharge != nil {
			h.ChargeRef = pi.LatestCharge.ID
		}
		return h, nil
	case stripe.PaymentIntentStatusCanceled:
		return Hold{State: HoldCancelled}, nil
	default:
		return Hold{State: HoldActive}, nil
	}
}

func (p *StripeProcessor) ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]StaleHold, error) {
	params := &stripe.PaymentIntentListParams{
		CreatedRange: &stripe.RangeQueryParams{LesserThan: cutoff.Unix()},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var out []StaleHold
	it := paymentintent.List(params)
	for it.Next() {
		pi := it.PaymentIntent()
		if pi.Status != stripe.PaymentIntentStatusRequiresCapture {
			continue
		}
		out = append(out, StaleHold{
			HoldRef:  pi.ID,
			Metadata: pi.Metadata,
			Created:  time.Unix(pi.Created, 0).UTC(),
		})
		if len(out) == limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe list stale holds: %w", err)
	}
	return out, nil
}

func (p *StripeProcessor) Refund(ctx context.Context, chargeRef string, amountCents int64, idempotencyKey string) (string, error) {
	params := &stripe.RefundParams{
		Params: stripe.Params{Context: ctx},
		Charge: stripe.String(chargeRef),
	}
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund %s: %w", chargeRef, err)
	}
	return r.ID, nil
}

func (p *StripeProcessor) RetrieveAccount(ctx context.Context, accountID string) (AccountStatus, error) {
	a, err := account.GetByID(accountID, &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return AccountStatus{}, fmt.Errorf("stripe retrieve account %s: %w", accountID, err)
	}
	return AccountStatus{
		ChargesEnabled: a.ChargesEnabled,
		PayoutsEnabled: a.PayoutsEnabled,
	}, nil
}

// UnknownOutcome reports whether an error leaves the processor-side result
// undetermined (timeouts, 5xx). Such failures need a reconciliation
// re-check; retrying with a fresh idempotency key risks a duplicate charge.
func UnknownOutcome(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode >= 500
	}
	return false
}

var _ Processor = (*StripeProcessor)(nil)
