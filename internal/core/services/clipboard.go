package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riyakasaudhan20/sync-clip/internal/core/contracts"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

// SubmitInput is a client's encrypted clipboard write.
type SubmitInput struct {
	EncryptedContent string `json:"encrypted_content"`
	IV               string `json:"iv"`
	ContentHash      string `json:"content_hash"`
	ContentType      string `json:"content_type"`
	ContentSize      int    `json:"content_size"`
	ImageFormat      string `json:"image_format,omitempty"`
	ImageWidth       int    `json:"image_width,omitempty"`
	ImageHeight      int    `json:"image_height,omitempty"`
}

// SubmitResult distinguishes a new item from a suppressed duplicate.
type SubmitResult struct {
	Item     *domain.ClipboardItem
	Accepted bool
}

type ClipboardOptions struct {
	MaxContentSize  int
	MaxItemsPerUser int
	// ExcludeOrigin skips the writing device during fan-out.
	ExcludeOrigin bool
}

type ClipboardService struct {
	log   *slog.Logger
	repo  domain.ClipboardRepository
	tx    domain.Transactor
	dedup contracts.Deduplicator
	bus   contracts.EventBus
	clock domain.Clock
	opts  ClipboardOptions
}

func NewClipboardService(
	log *slog.Logger,
	repo domain.ClipboardRepository,
	tx domain.Transactor,
	dedup contracts.Deduplicator,
	bus contracts.EventBus,
	clock domain.Clock,
	opts ClipboardOptions,
) *ClipboardService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ClipboardService{
		log:   log,
		repo:  repo,
		tx:    tx,
		dedup: dedup,
		bus:   bus,
		clock: clock,
		opts:  opts,
	}
}

// Submit runs the write path: validate, dedup, persist, then hand the event
// to the bus. A duplicate is reported through SubmitResult, not an error.
func (s *ClipboardService) Submit(ctx context.Context, p domain.Principal, in SubmitInput) (SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "ClipboardService.Submit", trace.WithAttributes(
		attribute.String("user_id", p.UserID),
		attribute.String("device_id", p.DeviceID),
		attribute.Int("content_size", in.ContentSize),
	))
	defer span.End()

	if in.EncryptedContent == "" || in.IV == "" || in.ContentHash == "" || in.ContentSize < 0 {
		return SubmitResult{}, domain.ErrInvalidPayload
	}
	if s.opts.MaxContentSize > 0 && in.ContentSize > s.opts.MaxContentSize {
		return SubmitResult{}, fmt.Errorf("%w: %d > %d bytes", domain.ErrContentTooLarge, in.ContentSize, s.opts.MaxContentSize)
	}
	if in.ContentType == "" {
		in.ContentType = "text"
	}

	now := s.clock.Now()
	accepted, err := s.dedup.ShouldAccept(ctx, p.UserID, in.ContentHash, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dedup failed")
		s.log.ErrorContext(ctx, "clipboard - submit - dedup check failed", logging.User(p.UserID), logging.Err(err))
		return SubmitResult{}, err
	}
	if !accepted {
		span.SetAttributes(attribute.Bool("clipboard.duplicate", true))
		s.log.InfoContext(ctx, "clipboard - submit - duplicate suppressed", logging.User(p.UserID), logging.Device(p.DeviceID), logging.Fingerprint(in.ContentHash))
		return SubmitResult{Accepted: false}, nil
	}

	item := &domain.ClipboardItem{
		ID:               uuid.NewString(),
		UserID:           p.UserID,
		DeviceID:         p.DeviceID,
		EncryptedContent: in.EncryptedContent,
		IV:               in.IV,
		ContentHash:      in.ContentHash,
		ContentType:      in.ContentType,
		ContentSize:      in.ContentSize,
		ImageFormat:      in.ImageFormat,
		ImageWidth:       in.ImageWidth,
		ImageHeight:      in.ImageHeight,
		CreatedAt:        now,
	}
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.Save(txCtx, item, s.opts.MaxItemsPerUser)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "clipboard - submit - save failed", logging.User(p.UserID), logging.Err(err))
		if ferr := s.dedup.Forget(context.WithoutCancel(ctx), p.UserID, in.ContentHash, now); ferr != nil {
			s.log.ErrorContext(ctx, "clipboard - submit - release fingerprint failed", logging.User(p.UserID), logging.Err(ferr))
		}
		return SubmitResult{}, err
	}
	s.log.InfoContext(ctx, "clipboard - submit - save success", logging.User(p.UserID), logging.Item(item.ID))

	msg := domain.BusMessage{UserID: p.UserID, Event: domain.NewClipboardEvent(item)}
	if s.opts.ExcludeOrigin {
		msg.ExcludeDevice = p.DeviceID
	}
	// The item is stored; devices that miss the push catch up through history.
	if err := s.bus.Publish(ctx, msg); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "clipboard - submit - publish failed", logging.User(p.UserID), logging.Item(item.ID), logging.Err(err))
	}
	span.SetStatus(codes.Ok, "accepted")
	return SubmitResult{Item: item, Accepted: true}, nil
}
