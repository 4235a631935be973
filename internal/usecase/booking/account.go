package booking

import (
	"context"
	"log"

	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/payments"
)

// verifyPayoutAccount rejects bookings that would charge money toward a
// coach whose processor account cannot take charges or receive payouts.
func verifyPayoutAccount(ctx context.Context, processor payments.Processor, coach *models.User) error {
	if coach.PayoutAccountID == "" {
		return httperr.ErrBusiness("coach_account_unverified")
	}

	status, err := processor.RetrieveAccount(ctx, coach.PayoutAccountID)
	if err != nil {
		log.Printf("payments: retrieve account coach=%d account=%s: %v", coach.ID, coach.PayoutAccountID, err)
		return httperr.ErrBusiness("processor_unavailable")
	}

	if !status.ChargesEnabled || !status.PayoutsEnabled {
		return httperr.ErrBusiness("coach_account_unverified")
	}
	return nil
}
