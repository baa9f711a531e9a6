package moderation

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testPNG renders a small solid image and returns it PNG-encoded.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 120, G: 30, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestFromStringClassification(t *testing.T) {
	cases := []struct {
		in   string
		want inputKind
	}{
		{"data:image/png;base64,aGVsbG8=", kindDataURL},
		{"https://example.com/cat.png", kindRemoteURL},
		{"http://example.com/cat.png", kindRemoteURL},
		{"aGVsbG8=", kindPlainBase64},
		{"", kindEmpty},
		{"   ", kindEmpty},
	}
	for _, tc := range cases {
		if got := FromString(tc.in).kind; got != tc.want {
			t.Errorf("FromString(%q).kind = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTranscodesToJPEG(t *testing.T) {
	n := newNormalizer(time.Second)

	out, err := n.Normalize(context.Background(), FromBytes(testPNG(t, 4, 4)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not a decodable JPEG: %v", err)
	}
}

func TestNormalizeDataURL(t *testing.T) {
	n := newNormalizer(time.Second)

	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 2, 2))
	if _, err := n.Normalize(context.Background(), FromString(encoded)); err != nil {
		t.Fatalf("Normalize data url: %v", err)
	}
}

func TestNormalizePlainBase64(t *testing.T) {
	n := newNormalizer(time.Second)

	encoded := base64.StdEncoding.EncodeToString(testPNG(t, 2, 2))
	if _, err := n.Normalize(context.Background(), FromString(encoded)); err != nil {
		t.Fatalf("Normalize plain base64: %v", err)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := newNormalizer(time.Second)

	cases := []ImageInput{
		FromBytes([]byte("definitely not an image")),
		FromString("!!!not-base64!!!"),
		FromString("data:image/png;base64"), // no comma
		{},                                  // empty variant
	}
	for i, in := range cases {
		_, err := n.Normalize(context.Background(), in)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("case %d: err = %v, want ErrUnsupportedFormat", i, err)
		}
	}
}

func TestNormalizeFetchesRemoteURL(t *testing.T) {
	payload := testPNG(t, 3, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	n := newNormalizer(time.Second)
	if _, err := n.Normalize(context.Background(), FromURL(srv.URL)); err != nil {
		t.Fatalf("Normalize remote url: %v", err)
	}
}

func TestNormalizeFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	n := newNormalizer(time.Second)
	_, err := n.Normalize(context.Background(), FromURL(srv.URL))

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fetchErr.StatusCode)
	}
}
