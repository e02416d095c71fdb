package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/metrics"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/notify"
)

type Repository interface {
	ListPending(ctx context.Context, limit int) ([]model.NotificationEvent, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error
	// MarkAttempt records a failed delivery together with the recipients that
	// were reached, so the next attempt skips them.
	MarkAttempt(ctx context.Context, eventID uuid.UUID, cause error, maxAttempts int, deliveredTo []string) error
}

// Recipients lists the users a notification goes to.
type Recipients interface {
	Recipients(ctx context.Context, roles ...model.Role) ([]model.User, error)
}

type Options struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	AppBaseURL   string
}

type Relay struct {
	repo       Repository
	recipients Recipients
	mailer     notify.Mailer
	logger     *zap.Logger
	opts       Options
}

var errUnknownEvent = errors.New("unknown notification type")

func NewRelay(repo Repository, recipients Recipients, mailer notify.Mailer, logger *zap.Logger, opts Options) *Relay {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		repo:       repo,
		recipients: recipients,
		mailer:     mailer,
		logger:     logger,
		opts:       opts,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay starting",
		zap.Duration("poll_interval", r.opts.PollInterval),
		zap.Int("batch_size", r.opts.BatchSize),
		zap.Int("max_attempts", r.opts.MaxAttempts),
	)

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	r.ProcessPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

// ProcessPending delivers one batch and returns how many rows were delivered.
func (r *Relay) ProcessPending(ctx context.Context) int {
	events, err := r.repo.ListPending(ctx, r.opts.BatchSize)
	if err != nil {
		r.logger.Warn("failed to list pending notifications", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, event := range events {
		logger := r.logger.With(zap.String("event_id", event.EventID.String()), zap.String("event_type", event.EventType))

		deliveredTo, err := r.deliver(ctx, event)
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(event.EventType, "failed").Inc()
			logger.Warn("failed to deliver notification",
				zap.Int("attempt", event.Attempts+1),
				zap.Int("delivered", len(deliveredTo)),
				zap.Error(err),
			)
			if err := r.repo.MarkAttempt(ctx, event.EventID, err, r.opts.MaxAttempts, deliveredTo); err != nil {
				logger.Warn("failed to record delivery attempt", zap.Error(err))
			}
			continue
		}

		metrics.NotificationsTotal.WithLabelValues(event.EventType, "sent").Inc()
		if err := r.repo.MarkPublished(ctx, event.EventID, time.Now()); err != nil {
			logger.Warn("failed to mark notification published", zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// deliver returns every recipient reached so far, including those of earlier
// attempts.
func (r *Relay) deliver(ctx context.Context, event model.NotificationEvent) ([]string, error) {
	switch event.EventType {
	case model.NotificationApplicationCreated:
		return r.deliverNewApplication(ctx, event)
	default:
		return nil, fmt.Errorf("%w %q", errUnknownEvent, event.EventType)
	}
}

func (r *Relay) deliverNewApplication(ctx context.Context, event model.NotificationEvent) ([]string, error) {
	deliveredTo := payloadStrings(event.Payload, model.PayloadDeliveredTo)
	users, err := r.recipients.Recipients(ctx, model.RoleAdmin, model.RoleManager)
	if err != nil {
		return deliveredTo, err
	}
	if len(users) == 0 {
		r.logger.Info("no recipients for notification", zap.String("event_id", event.EventID.String()))
		return deliveredTo, nil
	}

	reached := make(map[string]bool, len(deliveredTo))
	for _, email := range deliveredTo {
		reached[email] = true
	}

	app := notify.NewApplication{
		ApplicationID: payloadString(event.Payload, "application_id"),
		Name:          payloadString(event.Payload, "name"),
		Description:   payloadString(event.Payload, "description"),
		Vertical:      payloadString(event.Payload, "vertical"),
		VendorCompany: payloadString(event.Payload, "vendor_company"),
		DueDate:       payloadString(event.Payload, "due_date"),
	}

	var errs []error
	for _, user := range users {
		if reached[user.Email] {
			continue
		}
		recipient := user.FullName
		if recipient == "" {
			recipient = user.Email
		}
		msg, err := notify.RenderNewApplication(app, recipient, r.opts.AppBaseURL)
		if err != nil {
			return deliveredTo, err
		}
		msg.To = []string{user.Email}
		if err := r.mailer.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", user.Email, err))
			continue
		}
		reached[user.Email] = true
		deliveredTo = append(deliveredTo, user.Email)
	}
	return deliveredTo, errors.Join(errs...)
}

// payloadStrings reads a string list from a decoded JSON payload.
func payloadStrings(payload map[string]interface{}, key string) []string {
	var out []string
	switch v := payload[key].(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func payloadString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
