package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/peakform-app/peakform-api/internal/cache"
	"github.com/peakform-app/peakform-api/internal/config"
	"github.com/peakform-app/peakform-api/internal/handlers"
	infraRepo "github.com/peakform-app/peakform-api/internal/infra/repository"
	"github.com/peakform-app/peakform-api/internal/jobs"
	"github.com/peakform-app/peakform-api/internal/middleware"
	"github.com/peakform-app/peakform-api/internal/notify"
	"github.com/peakform-app/peakform-api/internal/payments"
	ucBooking "github.com/peakform-app/peakform-api/internal/usecase/booking"
)

// Wiring holds the singletons main also needs (the enforcer runs as a
// goroutine next to the HTTP server).
type Wiring struct {
	Enforcer *jobs.Enforcer
	Notifier *notify.Dispatcher
}

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config) *Wiring {

	// ======================================================
	// INFRA (SINGLETONS)
	// ======================================================
	repo := infraRepo.NewBookingGormRepository(db)
	processor := payments.NewStripeProcessor(cfg.StripeSecretKey, cfg.Currency)
	notifier := notify.NewDispatcher(notify.LogSender{})
	idemCache := cache.NewIdempotencyCache(cfg.RedisURL, cfg.IdempotencyWindow)

	fees := cfg.Fees()

	// ======================================================
	// USE CASES — BOOKING LIFECYCLE
	// ======================================================
	createIndividualUC := ucBooking.NewCreateIndividualBooking(
		repo, processor, notifier, idemCache, fees,
	)
	createPrivateGroupUC := ucBooking.NewCreatePrivateGroupBooking(
		repo, processor, notifier, idemCache, fees,
	)
	acceptUC := ucBooking.NewAcceptBooking(repo, notifier, cfg.PaymentWindow)
	declineUC := ucBooking.NewDeclineBooking(repo, notifier)
	payUC := ucBooking.NewPayBooking(repo, processor, notifier)

	releaseSeatUC := ucBooking.NewReleaseSeat(repo, processor, notifier)
	cancelUC := ucBooking.NewCancelBooking(repo, processor, notifier, releaseSeatUC)

	// ======================================================
	// USE CASES — PUBLIC LESSONS
	// ======================================================
	createLessonUC := ucBooking.NewCreatePublicGroupLesson(repo, processor)
	joinLessonUC := ucBooking.NewJoinPublicLesson(repo, processor, notifier, cfg.SeatHold)
	confirmLessonUC := ucBooking.NewConfirmLessonPayment(repo, processor, notifier)

	// ======================================================
	// USE CASES — DISPUTES / TIERS / RECURRING
	// ======================================================
	initiateDisputeUC := ucBooking.NewInitiateDispute(repo, notifier)
	resolveDisputeUC := ucBooking.NewResolveDispute(repo, notifier)
	refundUC := ucBooking.NewRefundBooking(repo, processor, notifier)

	updateTiersUC := ucBooking.NewUpdatePricingTiers(repo)

	createTemplateUC := ucBooking.NewCreateRecurringTemplate(repo, processor)
	cancelTemplateUC := ucBooking.NewCancelRecurringTemplate(repo)
	generateUC := ucBooking.NewGenerateRecurringInstances(repo, createLessonUC, cfg.RecurringHorizon)

	// ======================================================
	// BACKGROUND SWEEPS
	// ======================================================
	enforcer := jobs.NewEnforcer(
		repo, processor, notifier, releaseSeatUC, cancelUC,
		cfg.ReminderMinLead, cfg.ReminderMaxLead, cfg.SeatHold, cfg.EnforcerInterval,
	)

	// ======================================================
	// HANDLERS
	// ======================================================
	bookingHandler := handlers.NewBookingHandler(
		createIndividualUC,
		createPrivateGroupUC,
		acceptUC,
		declineUC,
		cancelUC,
		payUC,
		repo,
	)
	lessonHandler := handlers.NewLessonHandler(createLessonUC, joinLessonUC, confirmLessonUC)
	disputeHandler := handlers.NewDisputeHandler(initiateDisputeUC, resolveDisputeUC, refundUC)
	tierHandler := handlers.NewTierHandler(updateTiersUC, repo)
	recurringHandler := handlers.NewRecurringHandler(createTemplateUC, cancelTemplateUC, generateUC)
	jobsHandler := handlers.NewJobsHandler(enforcer)

	// ======================================================
	// API (JSON)
	// ======================================================
	api := r.Group("/api")
	secured := api.Group("/")
	secured.Use(middleware.AuthMiddleware(cfg))
	{
		// ------------------------------
		// BOOKINGS
		// ------------------------------
		secured.POST("/bookings/individual", bookingHandler.CreateIndividual)
		secured.POST("/bookings/private-group", bookingHandler.CreatePrivateGroup)
		secured.GET("/bookings/:id", bookingHandler.Get)

		secured.PATCH("/bookings/:id/accept", middleware.RequireRole(middleware.RoleCoach), bookingHandler.Accept)
		secured.PATCH("/bookings/:id/decline", middleware.RequireRole(middleware.RoleCoach), bookingHandler.Decline)
		secured.PATCH("/bookings/:id/cancel", bookingHandler.Cancel)
		secured.POST("/bookings/:id/pay", bookingHandler.Pay)

		secured.POST("/bookings/:id/dispute", disputeHandler.Dispute)
		secured.POST("/bookings/:id/resolve", middleware.RequireRole(middleware.RoleAdmin), disputeHandler.Resolve)

		// ------------------------------
		// PUBLIC GROUP LESSONS
		// ------------------------------
		secured.POST("/lessons", middleware.RequireRole(middleware.RoleCoach), lessonHandler.Create)
		secured.POST("/lessons/:id/join", lessonHandler.Join)
		secured.POST("/lessons/:id/confirm", lessonHandler.Confirm)

		// ------------------------------
		// COACH PRICING
		// ------------------------------
		secured.GET("/me/pricing-tiers", middleware.RequireRole(middleware.RoleCoach), tierHandler.List)
		secured.PUT("/me/pricing-tiers", middleware.RequireRole(middleware.RoleCoach), tierHandler.Replace)

		// ------------------------------
		// RECURRING TEMPLATES
		// ------------------------------
		secured.POST("/recurring-templates", middleware.RequireRole(middleware.RoleCoach), recurringHandler.Create)
		secured.POST("/recurring-templates/:id/cancel", middleware.RequireRole(middleware.RoleCoach), recurringHandler.Cancel)
		secured.POST("/recurring-templates/generate", middleware.RequireRole(middleware.RoleAdmin), recurringHandler.Generate)

		// ------------------------------
		// JOBS
		// ------------------------------
		secured.POST("/jobs/payment-deadlines", middleware.RequireRole(middleware.RoleAdmin), jobsHandler.RunPaymentDeadlines)
	}

	return &Wiring{
		Enforcer: enforcer,
		Notifier: notifier,
	}
}
