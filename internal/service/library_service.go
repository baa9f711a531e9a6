package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"imageguard/api/internal/config"
	"imageguard/api/internal/ids"
	"imageguard/api/internal/media/sniffer"
	"imageguard/api/internal/models"
	"imageguard/api/internal/moderation"
	"imageguard/api/internal/repository"
)

const (
	minAppealReason = 10
	maxAppealReason = 1000
	maxBulkReview   = 50
)

var (
	ErrImageNotFound          = errors.New("image not found")
	ErrImageNotUsable         = errors.New("image is not usable")
	ErrAppealReasonLength     = errors.New("appeal reason must be between 10 and 1000 characters")
	ErrAppealAlreadySubmitted = errors.New("appeal already submitted")
	ErrNotAppealable          = errors.New("image is not awaiting review")
	ErrAlreadyReviewed        = errors.New("image is no longer awaiting review")
	ErrBulkTooLarge           = errors.New("bulk review exceeds the batch limit")
	ErrInvalidDecision        = errors.New("decision must be approved or rejected")
)

// Screener is the slice of the moderation service the library needs.
type Screener interface {
	Enabled() bool
	ScreenImage(ctx context.Context, in moderation.ImageInput, opts moderation.Options) moderation.Result
}

// ImageStore is the persistence surface for library images.
type ImageStore interface {
	Create(ctx context.Context, image models.LibraryImage) error
	GetByID(ctx context.Context, id string) (models.LibraryImage, error)
	GetByOwner(ctx context.Context, ownerID, id string) (models.LibraryImage, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.LibraryImage, error)
	ListPendingReview(ctx context.Context, limit, offset int) ([]models.LibraryImage, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.LibraryImage, error)
	SubmitAppeal(ctx context.Context, id, ownerID, reason string) (bool, error)
	Review(ctx context.Context, id, adminID string, status models.ImageStatus, notes string, expiresAt *time.Time) (bool, error)
	BulkReview(ctx context.Context, ids []string, adminID string, status models.ImageStatus, notes string, expiresAt *time.Time) (int64, error)
}

// ObjectStore is the blob surface the library writes originals to.
type ObjectStore interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
	SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	Bucket() string
}

type UploadInput struct {
	OwnerID string
	Data    []byte
}

// evidence is the persisted subset of a moderation result.
type evidence struct {
	Reasons          []string                   `json:"reasons,omitempty"`
	HasIdentityMatch bool                       `json:"hasIdentityMatch"`
	HasMinorSignal   bool                       `json:"hasMinorSignal"`
	IdentityMatches  []moderation.IdentityMatch `json:"identityMatches,omitempty"`
	ContentLabels    []moderation.ContentLabel  `json:"contentLabels,omitempty"`
	FaceSummary      moderation.FaceSummary     `json:"faceSummary"`
	DetectorError    string                     `json:"detectorError,omitempty"`
}

type LibraryService struct {
	images   ImageStore
	store    ObjectStore
	screener Screener
	queue    *ReviewQueue
	cfg      config.ModerationConfig
	log      zerolog.Logger
}

func NewLibraryService(images ImageStore, store ObjectStore, screener Screener, queue *ReviewQueue, cfg config.ModerationConfig, log zerolog.Logger) *LibraryService {
	return &LibraryService{
		images:   images,
		store:    store,
		screener: screener,
		queue:    queue,
		cfg:      cfg,
		log:      log,
	}
}

// Upload screens the image, assigns a status via confidence tiering, stores
// the original object, and persists the record. With the screening provider
// unconfigured the upload is refused outright (fail-closed), nothing is
// stored.
func (s *LibraryService) Upload(ctx context.Context, input UploadInput) (models.LibraryImage, error) {
	if len(input.Data) == 0 {
		return models.LibraryImage{}, fmt.Errorf("%w: empty payload", moderation.ErrUnsupportedFormat)
	}

	head := input.Data
	if len(head) > 512 {
		head = head[:512]
	}
	format, err := sniffer.DetectHead(head)
	if err != nil {
		return models.LibraryImage{}, moderation.ErrUnsupportedFormat
	}

	if !s.screener.Enabled() {
		return models.LibraryImage{}, moderation.ErrProviderUnavailable
	}

	result := s.screener.ScreenImage(ctx, moderation.FromBytes(input.Data), moderation.Options{
		CheckIdentity:      true,
		CheckContentLabels: true,
	})
	if result.ServiceUnavailable {
		return models.LibraryImage{}, moderation.ErrProviderUnavailable
	}

	status := moderation.AssignStatus(result, s.cfg)

	evidencePayload, err := json.Marshal(evidence{
		Reasons:          result.Reasons,
		HasIdentityMatch: result.HasIdentityMatch,
		HasMinorSignal:   result.HasMinorSignal,
		IdentityMatches:  result.IdentityMatches,
		ContentLabels:    result.ContentLabels,
		FaceSummary:      result.FaceSummary,
		DetectorError:    result.DetectorError,
	})
	if err != nil {
		return models.LibraryImage{}, fmt.Errorf("marshal evidence: %w", err)
	}

	imageID := ids.New()
	objectKey := fmt.Sprintf("%s/%s.%s", input.OwnerID, imageID, format.Type)

	if err := s.store.Upload(ctx, objectKey, input.Data, format.MIME); err != nil {
		return models.LibraryImage{}, fmt.Errorf("store original: %w", err)
	}

	image := models.LibraryImage{
		ID:                 imageID,
		OwnerID:            input.OwnerID,
		Bucket:             s.store.Bucket(),
		ObjectKey:          objectKey,
		MimeType:           format.MIME,
		SizeBytes:          int64(len(input.Data)),
		Status:             status,
		ModerationEvidence: evidencePayload,
		CreatedAt:          time.Now().UTC(),
	}
	if result.MaxIdentityConfidence > 0 {
		v := result.MaxIdentityConfidence
		image.IdentityConfidence = &v
	}
	if result.MaxMinorConfidence > 0 {
		v := result.MaxMinorConfidence
		image.MinorConfidence = &v
	}

	if err := s.images.Create(ctx, image); err != nil {
		return models.LibraryImage{}, fmt.Errorf("save metadata: %w", err)
	}

	if status == models.ImageStatusPendingReview {
		if err := s.queue.Push(ctx, imageID, image.CreatedAt); err != nil {
			s.log.Warn().Err(err).Str("image_id", imageID).Msg("enqueue review failed")
		}
	}

	return image, nil
}

func (s *LibraryService) Get(ctx context.Context, ownerID, id string) (models.LibraryImage, error) {
	image, err := s.images.GetByOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.LibraryImage{}, ErrImageNotFound
		}
		return models.LibraryImage{}, err
	}
	return image, nil
}

func (s *LibraryService) List(ctx context.Context, ownerID string, limit, offset int) ([]models.LibraryImage, error) {
	return s.images.ListByOwner(ctx, ownerID, limit, offset)
}

// SignedURL hands out a time-limited download link for a usable image.
// Status is re-checked at read time, so a rejection that landed between
// upload and use is honored immediately.
func (s *LibraryService) SignedURL(ctx context.Context, ownerID, id string, ttl time.Duration) (string, error) {
	image, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if !image.CanUse() {
		return "", ErrImageNotUsable
	}
	return s.store.SignedURL(ctx, image.ObjectKey, ttl)
}

// SubmitAppeal records a one-time appeal for a pending image. The status
// itself does not change; the image only moves up the review queue.
func (s *LibraryService) SubmitAppeal(ctx context.Context, ownerID, id, reason string) (models.LibraryImage, error) {
	if len(reason) < minAppealReason || len(reason) > maxAppealReason {
		return models.LibraryImage{}, ErrAppealReasonLength
	}

	updated, err := s.images.SubmitAppeal(ctx, id, ownerID, reason)
	if err != nil {
		return models.LibraryImage{}, fmt.Errorf("submit appeal: %w", err)
	}
	if !updated {
		// the guarded update matched nothing; fetch to say why
		image, err := s.images.GetByOwner(ctx, ownerID, id)
		if err != nil {
			if errors.Is(err, repository.ErrImageNotFound) {
				return models.LibraryImage{}, ErrImageNotFound
			}
			return models.LibraryImage{}, err
		}
		if image.AppealSubmittedAt != nil {
			return models.LibraryImage{}, ErrAppealAlreadySubmitted
		}
		return models.LibraryImage{}, ErrNotAppealable
	}

	if err := s.queue.Boost(ctx, id, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("image_id", id).Msg("boost review queue failed")
	}

	return s.Get(ctx, ownerID, id)
}

// Review applies one admin decision. Rejection starts the retention clock.
func (s *LibraryService) Review(ctx context.Context, adminID, id, decision, notes string) (models.LibraryImage, error) {
	status, expiresAt, err := s.resolveDecision(decision)
	if err != nil {
		return models.LibraryImage{}, err
	}

	updated, err := s.images.Review(ctx, id, adminID, status, notes, expiresAt)
	if err != nil {
		return models.LibraryImage{}, fmt.Errorf("review image: %w", err)
	}
	if !updated {
		if _, err := s.images.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrImageNotFound) {
				return models.LibraryImage{}, ErrImageNotFound
			}
			return models.LibraryImage{}, err
		}
		return models.LibraryImage{}, ErrAlreadyReviewed
	}

	if err := s.queue.Remove(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("image_id", id).Msg("dequeue reviewed image failed")
	}

	return s.images.GetByID(ctx, id)
}

// BulkReview applies the same decision to up to maxBulkReview pending
// images. The size guard runs before any database write; records a race
// moved out of pending_review are simply excluded from the count.
func (s *LibraryService) BulkReview(ctx context.Context, adminID string, imageIDs []string, decision, notes string) (int64, error) {
	if len(imageIDs) == 0 {
		return 0, fmt.Errorf("%w: no image ids", ErrBulkTooLarge)
	}
	if len(imageIDs) > maxBulkReview {
		return 0, fmt.Errorf("%w: %d ids, limit %d", ErrBulkTooLarge, len(imageIDs), maxBulkReview)
	}

	status, expiresAt, err := s.resolveDecision(decision)
	if err != nil {
		return 0, err
	}

	count, err := s.images.BulkReview(ctx, imageIDs, adminID, status, notes, expiresAt)
	if err != nil {
		return 0, fmt.Errorf("bulk review: %w", err)
	}

	if err := s.queue.Remove(ctx, imageIDs...); err != nil {
		s.log.Warn().Err(err).Msg("dequeue bulk reviewed images failed")
	}

	return count, nil
}

// ReviewQueue returns the pending images in priority order. Redis supplies
// the ordering when populated; postgres is the fallback and the source of
// truth for status either way.
func (s *LibraryService) ReviewQueue(ctx context.Context, limit int) ([]models.LibraryImage, error) {
	queued, err := s.queue.List(ctx, limit)
	if err != nil {
		s.log.Warn().Err(err).Msg("read review queue failed, falling back to database order")
	}
	if len(queued) == 0 {
		return s.images.ListPendingReview(ctx, limit, 0)
	}

	images, err := s.images.GetByIDs(ctx, queued)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.LibraryImage, len(images))
	for _, image := range images {
		byID[image.ID] = image
	}

	ordered := make([]models.LibraryImage, 0, len(queued))
	for _, id := range queued {
		image, ok := byID[id]
		if !ok || image.Status != models.ImageStatusPendingReview {
			// stale queue entry; status in postgres wins
			continue
		}
		ordered = append(ordered, image)
	}
	return ordered, nil
}

func (s *LibraryService) resolveDecision(decision string) (models.ImageStatus, *time.Time, error) {
	switch decision {
	case "approved":
		return models.ImageStatusApproved, nil, nil
	case "rejected":
		expiresAt := time.Now().UTC().Add(s.cfg.RetentionWindow)
		return models.ImageStatusRejected, &expiresAt, nil
	default:
		return "", nil, ErrInvalidDecision
	}
}
