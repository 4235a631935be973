package pricing

import (
	"math"

	"github.com/peakform-app/peakform-api/internal/httperr"
)

// ===============================
// Fee Schedule
// ===============================

type FeeSchedule struct {
	PlatformPercent     float64 // marketplace cut of the post-processor net, 0-100
	ProcessorPercent    float64 // processor percentage fee, 0-100
	ProcessorFixedCents int64   // processor fixed fee per charge
}

// Breakdown is a money split consistent to the cent:
// ClientPays == ProcessorFee + PlatformFee + CoachPayout, always.
type Breakdown struct {
	ClientPaysCents   int64 `json:"client_pays_cents"`
	ProcessorFeeCents int64 `json:"processor_fee_cents"`
	PlatformFeeCents  int64 `json:"platform_fee_cents"`
	CoachPayoutCents  int64 `json:"coach_payout_cents"`
}

// ===============================
// Forward solve
// ===============================

// FromDesiredPayout derives what the client must be charged so the coach
// takes home exactly payoutCents after the processor's cut and the
// platform's cut of the post-processor net. Solved in closed form:
//
//	clientPays = (D + F·(1−P)) / ((1−S)·(1−P))
//
// Layering the two fees naively underpays the coach because each fee
// compounds on the other.
func FromDesiredPayout(payoutCents int64, fees FeeSchedule) (Breakdown, error) {
	if payoutCents <= 0 {
		return Breakdown{}, httperr.ErrBusiness("invalid_rate")
	}
	if err := validateFees(fees); err != nil {
		return Breakdown{}, err
	}
	if fees.PlatformPercent >= 100 {
		// A 100% platform cut leaves nothing to pay out of.
		return Breakdown{}, httperr.ErrBusiness("invalid_platform_fee")
	}

	p := fees.PlatformPercent / 100
	s := fees.ProcessorPercent / 100
	f := float64(fees.ProcessorFixedCents)
	d := float64(payoutCents)

	clientPays := roundCents((d + f*(1-p)) / ((1 - s) * (1 - p)))
	return split(clientPays, fees), nil
}

// FromHourlyRate derives the breakdown for an individual session from the
// coach's hourly take-home rate and the session duration.
func FromHourlyRate(rateCents int64, durationMin int, fees FeeSchedule) (Breakdown, error) {
	if rateCents <= 0 {
		return Breakdown{}, httperr.ErrBusiness("invalid_rate")
	}
	if durationMin <= 0 {
		return Breakdown{}, httperr.ErrBusiness("invalid_duration")
	}

	payout := roundCents(float64(rateCents) * float64(durationMin) / 60)
	return FromDesiredPayout(payout, fees)
}

// ===============================
// Reverse solve
// ===============================

// FromClientCharge computes the three cuts directly from an amount already
// charged to the client, without re-solving for the payout. Used for
// refunds and reconciliation against captured charges.
func FromClientCharge(clientPaysCents int64, fees FeeSchedule) (Breakdown, error) {
	if clientPaysCents <= 0 {
		return Breakdown{}, httperr.ErrBusiness("invalid_amount")
	}
	if err := validateFees(fees); err != nil {
		return Breakdown{}, err
	}

	return split(clientPaysCents, fees), nil
}

// GroupTotals aggregates a public-group lesson from captured seats only.
// An empty seat never produces payout.
func GroupTotals(perPersonCents int64, capturedSeats int, fees FeeSchedule) (Breakdown, error) {
	if perPersonCents <= 0 {
		return Breakdown{}, httperr.ErrBusiness("invalid_rate")
	}
	if capturedSeats < 0 {
		return Breakdown{}, httperr.ErrBusiness("invalid_amount")
	}
	if err := validateFees(fees); err != nil {
		return Breakdown{}, err
	}
	if capturedSeats == 0 {
		return Breakdown{}, nil
	}

	return split(perPersonCents*int64(capturedSeats), fees), nil
}

// ===============================
// Internals
// ===============================

// split carves a charged amount into the three cuts. The payout is the
// residual, which makes the sum identity exact at integer cents.
func split(clientPaysCents int64, fees FeeSchedule) Breakdown {
	p := fees.PlatformPercent / 100
	s := fees.ProcessorPercent / 100

	processorFee := roundCents(float64(clientPaysCents)*s) + fees.ProcessorFixedCents
	platformFee := roundCents(float64(clientPaysCents-processorFee) * p)
	payout := clientPaysCents - processorFee - platformFee

	return Breakdown{
		ClientPaysCents:   clientPaysCents,
		ProcessorFeeCents: processorFee,
		PlatformFeeCents:  platformFee,
		CoachPayoutCents:  payout,
	}
}

func validateFees(fees FeeSchedule) error {
	if fees.PlatformPercent < 0 || fees.PlatformPercent > 100 {
		return httperr.ErrBusiness("invalid_platform_fee")
	}
	if fees.ProcessorPercent < 0 || fees.ProcessorPercent >= 100 {
		return httperr.ErrBusiness("invalid_processor_fee")
	}
	if fees.ProcessorFixedCents < 0 {
		return httperr.ErrBusiness("invalid_processor_fee")
	}
	return nil
}

// roundCents rounds half-to-even at the cent boundary. Division over money
// only ever happens transiently, right before this call.
func roundCents(x float64) int64 {
	return int64(math.RoundToEven(x))
}
