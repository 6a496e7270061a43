package biz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"go.uber.org/zap"
)

// DefaultSource is the event log source for storage notifications
const DefaultSource = "sns"

// OutcomeKind classifies how a delivery was handled
type OutcomeKind int

const (
	OutcomeProcessed OutcomeKind = iota
	OutcomeSubscribed
	OutcomeIgnored
	OutcomeDuplicate
	OutcomeMalformed
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSubscribed:
		return "subscribed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of Handle. Every kind is acknowledged to the sender.
type Outcome struct {
	Kind    OutcomeKind
	EventID string
	Err     error
}

// Duplicate reports whether the delivery had been seen before
func (o Outcome) Duplicate() bool {
	return o.Kind == OutcomeDuplicate
}

// WebhookUseCase routes provider notifications into the restore pipeline
type WebhookUseCase struct {
	events     EventRepo
	seen       SeenCache
	reconciler Reconciler
	verifier   Verifier
	confirmer  Confirmer
	source     string
	logger     *logger.Logger
	now        func() time.Time
}

// NewWebhookUseCase creates the router. seen may be nil.
func NewWebhookUseCase(events EventRepo, seen SeenCache, reconciler Reconciler, verifier Verifier, confirmer Confirmer, source string, log *logger.Logger) *WebhookUseCase {
	if source == "" {
		source = DefaultSource
	}
	return &WebhookUseCase{
		events:     events,
		seen:       seen,
		reconciler: reconciler,
		verifier:   verifier,
		confirmer:  confirmer,
		source:     source,
		logger:     log.Named("webhook"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Verify authenticates msg. Failures wrap ErrSignatureInvalid.
func (uc *WebhookUseCase) Verify(ctx context.Context, msg *types.Message) error {
	// Unknown types have no canonical form to check; Handle ignores them
	// without side effects.
	if !msg.Type.Known() {
		return nil
	}
	if err := uc.verifier.Verify(ctx, msg); err != nil {
		uc.logger.WithContext(ctx).Warn("rejected webhook message",
			zap.String("type", string(msg.Type)),
			zap.String("message_id", msg.MessageID),
			zap.String("topic_arn", msg.TopicArn),
			zap.Error(err),
		)
		if !errors.Is(err, ErrSignatureInvalid) {
			err = fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		return err
	}
	return nil
}

// Handle routes a verified message. raw is the request body and is stored
// as the event payload.
func (uc *WebhookUseCase) Handle(ctx context.Context, msg *types.Message, raw []byte) Outcome {
	log := uc.logger.WithContext(ctx).With(
		zap.String("type", string(msg.Type)),
		zap.String("message_id", msg.MessageID),
	)

	switch msg.Type {
	case types.MessageTypeSubscriptionConfirmation:
		if err := uc.confirmer.Confirm(ctx, msg); err != nil {
			log.Error("failed to confirm subscription", zap.Error(err))
		}
		return Outcome{Kind: OutcomeSubscribed}
	case types.MessageTypeNotification:
		return uc.handleNotification(ctx, log, msg, raw)
	default:
		log.Info("ignoring webhook message type")
		return Outcome{Kind: OutcomeIgnored}
	}
}

func (uc *WebhookUseCase) handleNotification(ctx context.Context, log *logger.Logger, msg *types.Message, raw []byte) Outcome {
	if msg.MessageID == "" {
		log.Error("notification without MessageId")
		return Outcome{Kind: OutcomeMalformed}
	}

	if uc.isDuplicate(ctx, log, msg.MessageID) {
		log.Debug("duplicate notification")
		return Outcome{Kind: OutcomeDuplicate}
	}

	event, err := types.ParseS3Event(msg.Message)
	if err != nil {
		log.Error("failed to decode storage event", zap.Error(err))
		return Outcome{Kind: OutcomeMalformed}
	}

	now := uc.now()
	ev := &Event{
		ID:         uuid.New().String(),
		Source:     uc.source,
		ExternalID: msg.MessageID,
		EventType:  event.EventType(),
		Payload:    string(raw),
		Status:     types.WebhookEventStatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.events.Insert(ctx, ev); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			log.Debug("notification recorded concurrently")
			uc.markSeen(ctx, log, msg.MessageID)
			return Outcome{Kind: OutcomeDuplicate}
		}
		log.Error("failed to record webhook event", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
	uc.markSeen(ctx, log, msg.MessageID)

	log = log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.EventType))
	return uc.finish(ctx, log, ev.ID, event.Records)
}

// isDuplicate consults the seen cache, then the event log. Lookup errors
// fall through to the insert, whose unique key has the final word.
func (uc *WebhookUseCase) isDuplicate(ctx context.Context, log *logger.Logger, externalID string) bool {
	if uc.seen != nil {
		seen, err := uc.seen.Seen(ctx, uc.source, externalID)
		if err != nil {
			log.Warn("seen cache lookup failed", zap.Error(err))
		} else if seen {
			return true
		}
	}

	_, err := uc.events.Find(ctx, uc.source, externalID)
	switch {
	case err == nil:
		uc.markSeen(ctx, log, externalID)
		return true
	case errors.Is(err, ErrEventNotFound):
		return false
	default:
		log.Warn("event log lookup failed", zap.Error(err))
		return false
	}
}

func (uc *WebhookUseCase) markSeen(ctx context.Context, log *logger.Logger, externalID string) {
	if uc.seen == nil {
		return
	}
	if err := uc.seen.MarkSeen(ctx, uc.source, externalID); err != nil {
		log.Warn("failed to mark notification seen", zap.Error(err))
	}
}

// finish reconciles records and stores the terminal status of the event
// The status write ignores cancellation of ctx so a failed event stays replayable.
func (uc *WebhookUseCase) finish(ctx context.Context, log *logger.Logger, eventID string, records []types.S3EventRecord) Outcome {
	storeCtx := context.WithoutCancel(ctx)
	if err := uc.reconcile(ctx, log, records); err != nil {
		log.Error("failed to process webhook event", zap.Error(err))
		if uerr := uc.events.UpdateStatus(storeCtx, eventID, types.WebhookEventStatusFailed, err.Error()); uerr != nil {
			log.Error("failed to mark webhook event failed", zap.Error(uerr))
		}
		return Outcome{Kind: OutcomeFailed, EventID: eventID, Err: err}
	}

	if err := uc.events.UpdateStatus(storeCtx, eventID, types.WebhookEventStatusProcessed, ""); err != nil {
		log.Error("failed to mark webhook event processed", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, EventID: eventID, Err: err}
	}
	log.Info("webhook event processed", zap.Int("records", len(records)))
	return Outcome{Kind: OutcomeProcessed, EventID: eventID}
}

// reconcile applies every record in order and stops at the first error.
// A panic is returned as an error.
func (uc *WebhookUseCase) reconcile(ctx context.Context, log *logger.Logger, records []types.S3EventRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during reconciliation: %v", r)
		}
	}()

	for i, rec := range records {
		handled, rerr := uc.reconciler.Reconcile(ctx, rec)
		if rerr != nil {
			return fmt.Errorf("record %d (%s): %w", i, rec.EventName, rerr)
		}
		if !handled {
			log.Info("unhandled storage event", zap.Int("record", i), zap.String("event_name", rec.EventName))
		}
	}
	return nil
}

// Replay re-runs reconciliation for a failed event from its stored payload
func (uc *WebhookUseCase) Replay(ctx context.Context, eventID string) (Outcome, error) {
	ev, err := uc.events.GetByID(ctx, eventID)
	if err != nil {
		return Outcome{}, err
	}
	if ev.Status != types.WebhookEventStatusFailed {
		return Outcome{}, ErrEventNotFailed
	}

	log := uc.logger.WithContext(ctx).With(
		zap.String("event_id", ev.ID),
		zap.String("message_id", ev.ExternalID),
		zap.Bool("replay", true),
	)

	var msg types.Message
	if err := json.Unmarshal([]byte(ev.Payload), &msg); err != nil {
		return Outcome{}, fmt.Errorf("decode stored envelope: %w", err)
	}
	event, err := types.ParseS3Event(msg.Message)
	if err != nil {
		return Outcome{}, err
	}

	out := uc.finish(ctx, log, ev.ID, event.Records)
	return out, out.Err
}

// ListEvents returns the newest events, optionally filtered by status
func (uc *WebhookUseCase) ListEvents(ctx context.Context, status types.WebhookEventStatus, limit int) ([]*Event, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidEventStatus
	}
	return uc.events.ListByStatus(ctx, status, limit)
}
