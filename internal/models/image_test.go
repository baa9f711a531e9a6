package models

import (
	"testing"
	"time"
)

func TestCanUse(t *testing.T) {
	cases := []struct {
		status ImageStatus
		want   bool
	}{
		{ImageStatusAutoApproved, true},
		{ImageStatusApproved, true},
		{ImageStatusPendingReview, false},
		{ImageStatusRejected, false},
	}
	for _, tc := range cases {
		img := LibraryImage{Status: tc.status}
		if got := img.CanUse(); got != tc.want {
			t.Errorf("CanUse() with status %q = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestCanAppeal(t *testing.T) {
	img := LibraryImage{Status: ImageStatusPendingReview}
	if !img.CanAppeal() {
		t.Fatal("pending image without appeal should be appealable")
	}

	now := time.Now()
	img.AppealSubmittedAt = &now
	if img.CanAppeal() {
		t.Fatal("second appeal must not be possible")
	}

	for _, status := range []ImageStatus{ImageStatusAutoApproved, ImageStatusApproved, ImageStatusRejected} {
		img := LibraryImage{Status: status}
		if img.CanAppeal() {
			t.Errorf("status %q must not be appealable", status)
		}
	}
}
