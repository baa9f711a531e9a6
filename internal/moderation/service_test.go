package moderation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeProvider keys its findings on image width so batch tests can give
// each index a distinct fate. It records which widths were screened.
type fakeProvider struct {
	mu             sync.Mutex
	celebCalls     int
	labelCalls     int
	faceCalls      int
	screenedWidths []int

	celebsByWidth map[int][]CelebrityMatch
	labelsByWidth map[int][]Label
	facesByWidth  map[int][]Face
	err           error
}

func (p *fakeProvider) width(data []byte) int {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return -1
	}
	return cfg.Width
}

func (p *fakeProvider) record(w int) {
	p.screenedWidths = append(p.screenedWidths, w)
}

func (p *fakeProvider) RecognizeCelebrities(_ context.Context, data []byte) ([]CelebrityMatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.celebCalls++
	w := p.width(data)
	p.record(w)
	if p.err != nil {
		return nil, p.err
	}
	return p.celebsByWidth[w], nil
}

func (p *fakeProvider) DetectLabels(_ context.Context, data []byte, _ float64) ([]Label, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labelCalls++
	w := p.width(data)
	p.record(w)
	if p.err != nil {
		return nil, p.err
	}
	return p.labelsByWidth[w], nil
}

func (p *fakeProvider) DetectFaces(_ context.Context, data []byte) ([]Face, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faceCalls++
	w := p.width(data)
	p.record(w)
	if p.err != nil {
		return nil, p.err
	}
	return p.facesByWidth[w], nil
}

func (p *fakeProvider) sawWidth(w int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, seen := range p.screenedWidths {
		if seen == w {
			return true
		}
	}
	return false
}

func newTestService(provider Provider) *Service {
	cfg := testModerationConfig()
	return NewService(provider, nil, cfg, zerolog.Nop())
}

func allChecks() Options {
	return Options{CheckIdentity: true, CheckContentLabels: true}
}

func TestScreenImageFailsClosedWhenUnconfigured(t *testing.T) {
	svc := newTestService(nil)

	if svc.Enabled() {
		t.Fatal("service without provider must report disabled")
	}

	res := svc.ScreenImage(context.Background(), FromBytes(testPNG(t, 4, 4)), allChecks())
	if res.Approved {
		t.Fatal("unconfigured provider must not approve")
	}
	if !res.ServiceUnavailable {
		t.Fatal("ServiceUnavailable should be set")
	}
}

func TestScreenImagesFailClosedAtIndexZero(t *testing.T) {
	svc := newTestService(nil)

	inputs := []ImageInput{
		FromBytes(testPNG(t, 1, 1)),
		FromBytes(testPNG(t, 2, 2)),
	}
	batch, err := svc.ScreenImages(context.Background(), inputs, allChecks())
	if err != nil {
		t.Fatalf("ScreenImages: %v", err)
	}
	if batch.Approved {
		t.Fatal("unconfigured provider must fail the batch closed")
	}
	if batch.FailedIndex != 0 {
		t.Errorf("FailedIndex = %d, want 0", batch.FailedIndex)
	}
}

func TestScreenImageCleanApproves(t *testing.T) {
	provider := &fakeProvider{
		facesByWidth: map[int][]Face{4: {{AgeLow: 25, AgeHigh: 35, Confidence: 99}}},
	}
	svc := newTestService(provider)

	res := svc.ScreenImage(context.Background(), FromBytes(testPNG(t, 4, 4)), allChecks())
	if !res.Approved {
		t.Fatalf("clean image should approve, reasons: %v", res.Reasons)
	}
	if provider.celebCalls != 1 || provider.labelCalls != 1 || provider.faceCalls != 1 {
		t.Errorf("detector calls = %d/%d/%d, want 1/1/1", provider.celebCalls, provider.labelCalls, provider.faceCalls)
	}
}

func TestScreenImageIdentityMatchRejects(t *testing.T) {
	provider := &fakeProvider{
		celebsByWidth: map[int][]CelebrityMatch{4: {{Name: "Known Person", Confidence: 95, ProviderID: "abc"}}},
	}
	svc := newTestService(provider)

	res := svc.ScreenImage(context.Background(), FromBytes(testPNG(t, 4, 4)), allChecks())
	if res.Approved {
		t.Fatal("identity match should reject")
	}
	found := false
	for _, reason := range res.Reasons {
		if strings.Contains(reason, "Known Person") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons should name the matched identity, got %v", res.Reasons)
	}
}

func TestScreenImageFaceDetectionAlwaysRuns(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)

	// both optional detectors off; the minor-safety signal still runs
	svc.ScreenImage(context.Background(), FromBytes(testPNG(t, 4, 4)), Options{})

	if provider.faceCalls != 1 {
		t.Errorf("faceCalls = %d, want 1", provider.faceCalls)
	}
	if provider.celebCalls != 0 || provider.labelCalls != 0 {
		t.Errorf("optional detectors ran: celeb=%d label=%d", provider.celebCalls, provider.labelCalls)
	}
}

func TestScreenImageDetectorFailureRejects(t *testing.T) {
	provider := &fakeProvider{err: errors.New("throttled by provider")}
	svc := newTestService(provider)

	res := svc.ScreenImage(context.Background(), FromBytes(testPNG(t, 4, 4)), allChecks())
	if res.Approved {
		t.Fatal("detector failure must not degrade to approval")
	}
	if !res.Errored() {
		t.Fatal("result should record the screening error")
	}
	if len(res.Reasons) == 0 || !strings.Contains(res.Reasons[0], "throttled") {
		t.Errorf("reasons should carry the error message, got %v", res.Reasons)
	}
}

func TestScreenImageUnsupportedFormatRejects(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)

	res := svc.ScreenImage(context.Background(), FromBytes([]byte("not an image")), allChecks())
	if res.Approved {
		t.Fatal("undecodable input must reject")
	}
	if len(res.Reasons) == 0 || !strings.Contains(res.Reasons[0], "unsupported") {
		t.Errorf("reasons = %v, want unsupported format", res.Reasons)
	}
	if provider.faceCalls != 0 {
		t.Error("no detector call should happen for undecodable input")
	}
}

func TestScreenImagesFailFast(t *testing.T) {
	// width 2 carries a minor label; widths screen one at a time so the
	// short-circuit is observable
	provider := &fakeProvider{
		labelsByWidth: map[int][]Label{2: {{Name: "Child", Confidence: 90}}},
	}
	svc := newTestService(provider)
	svc.cfg.BatchConcurrency = 1

	inputs := []ImageInput{
		FromBytes(testPNG(t, 1, 1)),
		FromBytes(testPNG(t, 2, 2)),
		FromBytes(testPNG(t, 3, 3)),
	}
	batch, err := svc.ScreenImages(context.Background(), inputs, allChecks())
	if err != nil {
		t.Fatalf("ScreenImages: %v", err)
	}

	if batch.Approved {
		t.Fatal("batch with a flagged image must not approve")
	}
	if batch.FailedIndex != 1 {
		t.Errorf("FailedIndex = %d, want 1", batch.FailedIndex)
	}
	if provider.sawWidth(3) {
		t.Error("image after the failing index must never be screened")
	}
	if len(batch.Reasons) == 0 {
		t.Error("batch should surface the failing image's reasons")
	}
}

func TestScreenImagesLowestIndexWinsWithinBatch(t *testing.T) {
	provider := &fakeProvider{
		labelsByWidth: map[int][]Label{
			1: {{Name: "Child", Confidence: 90}},
			2: {{Name: "Teen", Confidence: 90}},
		},
	}
	svc := newTestService(provider)
	svc.cfg.BatchConcurrency = 2

	inputs := []ImageInput{
		FromBytes(testPNG(t, 1, 1)),
		FromBytes(testPNG(t, 2, 2)),
	}
	batch, err := svc.ScreenImages(context.Background(), inputs, allChecks())
	if err != nil {
		t.Fatalf("ScreenImages: %v", err)
	}
	if batch.FailedIndex != 0 {
		t.Errorf("FailedIndex = %d, want 0", batch.FailedIndex)
	}
}

func TestScreenImagesSkipsEmptyEntries(t *testing.T) {
	provider := &fakeProvider{
		facesByWidth: map[int][]Face{2: {{AgeLow: 30, AgeHigh: 40, Confidence: 99}}},
	}
	svc := newTestService(provider)

	inputs := []ImageInput{
		{},
		FromBytes(testPNG(t, 2, 2)),
		FromString(""),
	}
	batch, err := svc.ScreenImages(context.Background(), inputs, allChecks())
	if err != nil {
		t.Fatalf("ScreenImages: %v", err)
	}

	if !batch.Approved {
		t.Fatalf("batch should approve, reasons: %v", batch.Reasons)
	}
	if batch.Results[0] != nil || batch.Results[2] != nil {
		t.Error("skipped entries must have no result")
	}
	if got := provider.celebCalls + provider.labelCalls + provider.faceCalls; got != 3 {
		t.Errorf("detector calls = %d, want 3 (one image, three detectors)", got)
	}
}

func TestScreenImagesRejectsOversizedBatch(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)

	inputs := make([]ImageInput, 15)
	for i := range inputs {
		inputs[i] = FromBytes(testPNG(t, 1, 1))
	}
	_, err := svc.ScreenImages(context.Background(), inputs, allChecks())
	if !errors.Is(err, ErrTooManyImages) {
		t.Fatalf("err = %v, want ErrTooManyImages", err)
	}
	if provider.faceCalls != 0 {
		t.Error("oversized batch must do no work")
	}
}

func TestScreenImageFromURLFetchFailureRejects(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)

	res := svc.ScreenImageFromURL(context.Background(), "http://127.0.0.1:1/missing.png", allChecks())
	if res.Approved {
		t.Fatal("fetch failure must reject")
	}
	if len(res.Reasons) == 0 || !strings.Contains(res.Reasons[0], "fetch") {
		t.Errorf("reasons = %v, want a fetch failure reason", res.Reasons)
	}
}
