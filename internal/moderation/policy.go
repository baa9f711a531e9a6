package moderation

import (
	"fmt"
	"strings"

	"imageguard/api/internal/config"
	"imageguard/api/internal/models"
)

// minorVocabulary is matched case-insensitively as a substring against label
// names and parent categories.
var minorVocabulary = []string{
	"child", "minor", "underage", "infant", "baby", "toddler",
	"teen", "adolescent", "youth", "kid", "pediatric",
}

func isMinorLabel(label Label) bool {
	name := strings.ToLower(label.Name)
	parent := strings.ToLower(label.ParentCategory)
	for _, term := range minorVocabulary {
		if strings.Contains(name, term) || strings.Contains(parent, term) {
			return true
		}
	}
	return false
}

// isMinorAgeRange is the balanced-mode heuristic: flag ranges that skew
// clearly underage while tolerating adults who merely look young. An 18-24
// estimate passes; a 14-20 estimate does not.
func isMinorAgeRange(low, high int) bool {
	return low < 18 && high < 21
}

// signals holds the raw detector outputs joined before the decision runs.
type signals struct {
	celebrities []CelebrityMatch
	labels      []Label
	faces       []Face
}

// decide fuses detector outputs into one Result. The rejection rules are
// applied independently and unioned; any single finding blocks approval.
func decide(sig signals, cfg config.ModerationConfig) Result {
	res := Result{Approved: true}

	for _, match := range sig.celebrities {
		if match.Confidence > res.MaxIdentityConfidence {
			res.MaxIdentityConfidence = match.Confidence
		}
		// soft-flag range and above is retained as evidence for audit
		if match.Confidence >= cfg.IdentitySoftFlag {
			res.IdentityMatches = append(res.IdentityMatches, IdentityMatch{
				Name:       match.Name,
				Confidence: match.Confidence,
				ProviderID: match.ProviderID,
			})
		}
		if match.Confidence >= cfg.IdentityThreshold {
			res.Approved = false
			res.HasIdentityMatch = true
			res.Reasons = append(res.Reasons, fmt.Sprintf("identity match: %s (%.0f%% confidence)", match.Name, match.Confidence))
		}
	}

	for _, label := range sig.labels {
		if label.Confidence < cfg.LabelThreshold {
			continue
		}
		res.ContentLabels = append(res.ContentLabels, ContentLabel{
			Name:           label.Name,
			ParentCategory: label.ParentCategory,
			Confidence:     label.Confidence,
			TaxonomyLevel:  label.TaxonomyLevel,
		})
		if isMinorLabel(label) {
			res.Approved = false
			res.HasMinorSignal = true
			res.Reasons = append(res.Reasons, fmt.Sprintf("content label indicates possible minor: %s", label.Name))
			if label.Confidence > res.MaxMinorConfidence {
				res.MaxMinorConfidence = label.Confidence
			}
		}
	}

	for _, face := range sig.faces {
		if face.Confidence < cfg.FaceConfidenceFloor {
			// low-confidence detections (illustrations, dolls) stay out of
			// age reasoning but are counted for diagnostics
			res.FaceSummary.FacesBelowConfidenceFloor++
			continue
		}
		res.FaceSummary.FacesConsidered++
		if isMinorAgeRange(face.AgeLow, face.AgeHigh) {
			res.Approved = false
			res.HasMinorSignal = true
			res.FaceSummary.MinorFaces = append(res.FaceSummary.MinorFaces, AgeRange{Low: face.AgeLow, High: face.AgeHigh})
			res.Reasons = append(res.Reasons, fmt.Sprintf("face age estimate %d-%d indicates possible minor", face.AgeLow, face.AgeHigh))
			if face.Confidence > res.MaxMinorConfidence {
				res.MaxMinorConfidence = face.Confidence
			}
		}
	}

	return res
}

// AssignStatus maps a screening result onto a library-image status. Only
// library uploads use this richer tiering; ad-hoc reference screening needs
// just the binary Approved gate.
func AssignStatus(res Result, cfg config.ModerationConfig) models.ImageStatus {
	// uncertainty always routes to a human, never to automatic approval
	if res.Errored() || res.ServiceUnavailable {
		return models.ImageStatusPendingReview
	}

	if res.MaxMinorConfidence >= cfg.MinorHardFlag {
		return models.ImageStatusPendingReview
	}
	if res.MaxIdentityConfidence >= cfg.IdentityHardFlag {
		return models.ImageStatusPendingReview
	}
	// soft-flag identity matches auto-approve; the match stays in evidence
	return models.ImageStatusAutoApproved
}

func unavailableResult() Result {
	return Result{
		Approved:           false,
		ServiceUnavailable: true,
		Reasons:            []string{"moderation service is not configured"},
	}
}

func errorResult(err error) Result {
	return Result{
		Approved:      false,
		Reasons:       []string{fmt.Sprintf("moderation check failed: %v", err)},
		DetectorError: err.Error(),
	}
}

func rejectionResult(reason string) Result {
	return Result{
		Approved: false,
		Reasons:  []string{reason},
	}
}
