package models

import "time"

type ImageStatus string

const (
	ImageStatusAutoApproved  ImageStatus = "auto_approved"
	ImageStatusPendingReview ImageStatus = "pending_review"
	ImageStatusApproved      ImageStatus = "approved"
	ImageStatusRejected      ImageStatus = "rejected"
)

type LibraryImage struct {
	ID                 string
	OwnerID            string
	Bucket             string
	ObjectKey          string
	MimeType           string
	SizeBytes          int64
	Status             ImageStatus
	ModerationEvidence []byte
	IdentityConfidence *float64
	MinorConfidence    *float64
	AppealReason       *string
	AppealSubmittedAt  *time.Time
	ReviewedBy         *string
	ReviewedAt         *time.Time
	ReviewNotes        *string
	ExpiresAt          *time.Time
	CreatedAt          time.Time
}

// CanUse reports whether the image may be referenced by generation requests.
// Always derived from current status, never persisted.
func (i LibraryImage) CanUse() bool {
	return i.Status == ImageStatusAutoApproved || i.Status == ImageStatusApproved
}

// CanAppeal reports whether the owner may still submit an appeal: only images
// sitting in the review queue, and only once.
func (i LibraryImage) CanAppeal() bool {
	return i.Status == ImageStatusPendingReview && i.AppealSubmittedAt == nil
}
