package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"imageguard/api/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

const imageColumns = `
	id, owner_id, bucket, object_key, mime_type, size_bytes, status,
	moderation_evidence, identity_confidence, minor_confidence,
	appeal_reason, appeal_submitted_at, reviewed_by, reviewed_at,
	review_notes, expires_at, created_at
`

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Create(ctx context.Context, image models.LibraryImage) error {
	const query = `
		INSERT INTO library_images (
			id, owner_id, bucket, object_key, mime_type, size_bytes, status,
			moderation_evidence, identity_confidence, minor_confidence, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ID,
		image.OwnerID,
		image.Bucket,
		image.ObjectKey,
		image.MimeType,
		image.SizeBytes,
		image.Status,
		image.ModerationEvidence,
		image.IdentityConfidence,
		image.MinorConfidence,
	)
	return err
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.LibraryImage, error) {
	const query = `SELECT ` + imageColumns + ` FROM library_images WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *ImageRepository) GetByOwner(ctx context.Context, ownerID, id string) (models.LibraryImage, error) {
	const query = `SELECT ` + imageColumns + ` FROM library_images WHERE id = $1 AND owner_id = $2`
	return r.scanOne(r.pool.QueryRow(ctx, query, id, ownerID))
}

func (r *ImageRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.LibraryImage, error) {
	const query = `
		SELECT ` + imageColumns + `
		FROM library_images
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// ListPendingReview orders the queue by effective priority: appealed images
// first (oldest appeal first), then un-appealed images oldest first.
func (r *ImageRepository) ListPendingReview(ctx context.Context, limit, offset int) ([]models.LibraryImage, error) {
	const query = `
		SELECT ` + imageColumns + `
		FROM library_images
		WHERE status = 'pending_review'
		ORDER BY appeal_submitted_at ASC NULLS LAST, created_at ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *ImageRepository) GetByIDs(ctx context.Context, ids []string) ([]models.LibraryImage, error) {
	const query = `SELECT ` + imageColumns + ` FROM library_images WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// SubmitAppeal records an appeal. The WHERE clause re-checks the guard
// (pending_review, no prior appeal, correct owner) at write time so a
// racing adjudication or duplicate appeal cannot slip through.
func (r *ImageRepository) SubmitAppeal(ctx context.Context, id, ownerID, reason string) (bool, error) {
	const query = `
		UPDATE library_images
		SET appeal_reason = $3,
		    appeal_submitted_at = NOW()
		WHERE id = $1
		  AND owner_id = $2
		  AND status = 'pending_review'
		  AND appeal_submitted_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, ownerID, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Review applies an admin decision. Conditioned on the record still being
// pending_review; a stale read cannot double-adjudicate.
func (r *ImageRepository) Review(ctx context.Context, id, adminID string, status models.ImageStatus, notes string, expiresAt *time.Time) (bool, error) {
	const query = `
		UPDATE library_images
		SET status = $3,
		    reviewed_by = $2,
		    reviewed_at = NOW(),
		    review_notes = NULLIF($4, ''),
		    expires_at = $5
		WHERE id = $1
		  AND status = 'pending_review'
	`
	tag, err := r.pool.Exec(ctx, query, id, adminID, status, notes, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BulkReview applies the same decision to every id still pending_review.
// Records moved out of pending_review by a race are excluded from the count.
func (r *ImageRepository) BulkReview(ctx context.Context, ids []string, adminID string, status models.ImageStatus, notes string, expiresAt *time.Time) (int64, error) {
	const query = `
		UPDATE library_images
		SET status = $3,
		    reviewed_by = $2,
		    reviewed_at = NOW(),
		    review_notes = NULLIF($4, ''),
		    expires_at = $5
		WHERE id = ANY($1)
		  AND status = 'pending_review'
	`
	tag, err := r.pool.Exec(ctx, query, ids, adminID, status, notes, expiresAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListExpired returns rejected images whose retention window has passed.
func (r *ImageRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.LibraryImage, error) {
	const query = `
		SELECT ` + imageColumns + `
		FROM library_images
		WHERE status = 'rejected'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *ImageRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	const query = `DELETE FROM library_images WHERE id = ANY($1)`
	tag, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ImageRepository) scanOne(row pgx.Row) (models.LibraryImage, error) {
	var image models.LibraryImage
	if err := row.Scan(
		&image.ID,
		&image.OwnerID,
		&image.Bucket,
		&image.ObjectKey,
		&image.MimeType,
		&image.SizeBytes,
		&image.Status,
		&image.ModerationEvidence,
		&image.IdentityConfidence,
		&image.MinorConfidence,
		&image.AppealReason,
		&image.AppealSubmittedAt,
		&image.ReviewedBy,
		&image.ReviewedAt,
		&image.ReviewNotes,
		&image.ExpiresAt,
		&image.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LibraryImage{}, ErrImageNotFound
		}
		return models.LibraryImage{}, err
	}
	return image, nil
}

func (r *ImageRepository) scanAll(rows pgx.Rows) ([]models.LibraryImage, error) {
	var images []models.LibraryImage
	for rows.Next() {
		var image models.LibraryImage
		if err := rows.Scan(
			&image.ID,
			&image.OwnerID,
			&image.Bucket,
			&image.ObjectKey,
			&image.MimeType,
			&image.SizeBytes,
			&image.Status,
			&image.ModerationEvidence,
			&image.IdentityConfidence,
			&image.MinorConfidence,
			&image.AppealReason,
			&image.AppealSubmittedAt,
			&image.ReviewedBy,
			&image.ReviewedAt,
			&image.ReviewNotes,
			&image.ExpiresAt,
			&image.CreatedAt,
		); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}
