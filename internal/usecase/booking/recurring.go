package booking

import (
	"context"
	"log"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/payments"
	"github.com/peakform-app/peakform-api/internal/timezone"
)

// ======================================================
// CREATE TEMPLATE
// ======================================================

type CreateRecurringTemplateInput struct {
	CoachID uint

	Weekday        int
	StartTimeLocal string // "HH:MM"
	DurationMin    int
	Timezone       string

	MinParticipants     int
	MaxParticipants     int
	PricePerPersonCents int64

	Location    string
	ActiveFrom  time.Time
	ActiveUntil *time.Time
}

type CreateRecurringTemplate struct {
	repo      domain.Repository
	processor payments.Processor
}

func NewCreateRecurringTemplate(
	repo domain.Repository,
	processor payments.Processor,
) *CreateRecurringTemplate {
	return &CreateRecurringTemplate{
		repo:      repo,
		processor: processor,
	}
}

func (uc *CreateRecurringTemplate) Execute(
	ctx context.Context,
	in CreateRecurringTemplateInput,
) (*models.RecurringLessonTemplate, error) {

	if in.Weekday < 0 || in.Weekday > 6 {
		return nil, httperr.ErrBusiness("invalid_weekday")
	}
	if _, err := time.Parse("15:04", in.StartTimeLocal); err != nil {
		return nil, httperr.ErrBusiness("invalid_start_time")
	}
	if in.DurationMin <= 0 {
		return nil, httperr.ErrBusiness("invalid_duration")
	}
	if in.MinParticipants < 2 || in.MaxParticipants < in.MinParticipants {
		return nil, httperr.ErrBusiness("invalid_capacity")
	}
	if in.PricePerPersonCents <= 0 {
		return nil, httperr.ErrBusiness("invalid_rate")
	}
	if !timezone.IsValid(in.Timezone) {
		return nil, httperr.ErrBusiness("invalid_timezone")
	}
	if in.ActiveUntil != nil && !in.ActiveUntil.After(in.ActiveFrom) {
		return nil, httperr.ErrBusiness("invalid_active_window")
	}

	coach, err := uc.repo.GetUserByID(ctx, in.CoachID)
	if err != nil {
		return nil, httperr.ErrBusiness("coach_not_found")
	}
	if err := verifyPayoutAccount(ctx, uc.processor, coach); err != nil {
		return nil, err
	}

	activeFrom := in.ActiveFrom
	if activeFrom.IsZero() {
		activeFrom = time.Now().UTC()
	}

	t := &models.RecurringLessonTemplate{
		CoachID:             in.CoachID,
		Weekday:             in.Weekday,
		StartTimeLocal:      in.StartTimeLocal,
		DurationMin:         in.DurationMin,
		MinParticipants:     in.MinParticipants,
		MaxParticipants:     in.MaxParticipants,
		PricePerPersonCents: in.PricePerPersonCents,
		Location:            in.Location,
		Timezone:            in.Timezone,
		ActiveFrom:          activeFrom,
		ActiveUntil:         in.ActiveUntil,
		Active:              true,
	}
	if err := uc.repo.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ======================================================
// GENERATE INSTANCES
// ======================================================

// GenerateRecurringInstances expands every active template into concrete
// lessons over the rolling horizon. Occurrences are computed in the
// template's timezone, so a lesson pinned to 18:00 local stays at 18:00
// across DST shifts. The run is idempotent: an occurrence that already has
// an instance is skipped.
type GenerateRecurringInstances struct {
	repo    domain.Repository
	creator *CreatePublicGroupLesson
	horizon time.Duration
}

func NewGenerateRecurringInstances(
	repo domain.Repository,
	creator *CreatePublicGroupLesson,
	horizon time.Duration,
) *GenerateRecurringInstances {
	return &GenerateRecurringInstances{
		repo:    repo,
		creator: creator,
		horizon: horizon,
	}
}

type GenerateResult struct {
	TemplatesSeen int `json:"templates_seen"`
	Created       int `json:"created"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

func (uc *GenerateRecurringInstances) Execute(ctx context.Context) (*GenerateResult, error) {
	now := time.Now().UTC()

	templates, err := uc.repo.ListActiveTemplates(ctx)
	if err != nil {
		return nil, err
	}

	res := &GenerateResult{TemplatesSeen: len(templates)}
	for i := range templates {
		t := &templates[i]
		for _, start := range occurrences(t, now, uc.horizon) {
			existing, err := uc.repo.FindInstance(ctx, t.ID, start)
			if err != nil {
				log.Printf("generate template=%d start=%s: lookup: %v", t.ID, start, err)
				res.Failed++
				continue
			}
			if existing != nil {
				res.Skipped++
				continue
			}

			_, err = uc.creator.Execute(ctx, CreatePublicGroupLessonInput{
				CoachID:             t.CoachID,
				Start:               start,
				DurationMin:         t.DurationMin,
				Location:            t.Location,
				MinParticipants:     t.MinParticipants,
				MaxParticipants:     t.MaxParticipants,
				PricePerPersonCents: t.PricePerPersonCents,
				TemplateID:          &t.ID,
			})
			if err != nil {
				// A conflicting one-off booking blocks this slot; the template
				// keeps producing the other occurrences.
				log.Printf("generate template=%d start=%s: %v", t.ID, start, err)
				res.Failed++
				continue
			}
			res.Created++
		}
	}

	return res, nil
}

// occurrences lists the UTC start times of a template inside (now, now+horizon],
// clipped to the template's active window.
func occurrences(t *models.RecurringLessonTemplate, now time.Time, horizon time.Duration) []time.Time {
	loc := timezone.Location(t.Timezone)
	clock, err := time.Parse("15:04", t.StartTimeLocal)
	if err != nil {
		return nil
	}

	until := now.Add(horizon)
	var out []time.Time

	day := now.In(loc)
	for !day.After(until.In(loc).AddDate(0, 0, 1)) {
		if int(day.Weekday()) == t.Weekday {
			start := time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), 0, 0, loc).UTC()

			inWindow := start.After(now) && !start.After(until) &&
				!start.Before(t.ActiveFrom) &&
				(t.ActiveUntil == nil || start.Before(*t.ActiveUntil))
			if inWindow {
				out = append(out, start)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return out
}

// ======================================================
// CANCEL TEMPLATE
// ======================================================

// CancelRecurringTemplate deactivates a template and removes its future
// instances that nobody joined yet. Instances with seats stand and must be
// cancelled individually.
type CancelRecurringTemplate struct {
	repo domain.Repository
}

func NewCancelRecurringTemplate(repo domain.Repository) *CancelRecurringTemplate {
	return &CancelRecurringTemplate{repo: repo}
}

func (uc *CancelRecurringTemplate) Execute(
	ctx context.Context,
	coachID uint,
	templateID uint,
) (int64, error) {

	now := time.Now().UTC()

	t, err := uc.repo.GetTemplateByID(ctx, templateID)
	if err != nil || t == nil {
		return 0, httperr.ErrBusiness("template_not_found")
	}
	if t.CoachID != coachID {
		return 0, httperr.ErrBusiness("unauthorized_actor")
	}
	if !t.Active {
		return 0, nil
	}

	t.Active = false
	if err := uc.repo.SaveTemplate(ctx, t); err != nil {
		return 0, err
	}

	removed, err := uc.repo.DeleteEmptyFutureInstances(ctx, templateID, now)
	if err != nil {
		log.Printf("cancel template=%d: pruning empty instances: %v", templateID, err)
		return 0, err
	}
	return removed, nil
}
