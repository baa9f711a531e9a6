package moderation

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	transcodeQuality = 90
	maxFetchBytes    = 32 << 20
)

type inputKind int

const (
	kindEmpty inputKind = iota
	kindRawBytes
	kindDataURL
	kindPlainBase64
	kindRemoteURL
)

// ImageInput is the tagged variant for a screening payload: raw bytes, a
// data URL, a plain base64 string, or a remote URL. The variant is resolved
// exactly once, at the normalizer boundary.
type ImageInput struct {
	kind inputKind
	data []byte
	text string
}

func FromBytes(data []byte) ImageInput {
	if len(data) == 0 {
		return ImageInput{}
	}
	return ImageInput{kind: kindRawBytes, data: data}
}

// FromString classifies a string payload as a data URL, a remote URL, or a
// plain base64 body.
func FromString(s string) ImageInput {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ImageInput{}
	case strings.HasPrefix(s, "data:image/"):
		return ImageInput{kind: kindDataURL, text: s}
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return ImageInput{kind: kindRemoteURL, text: s}
	default:
		return ImageInput{kind: kindPlainBase64, text: s}
	}
}

func FromURL(url string) ImageInput {
	if strings.TrimSpace(url) == "" {
		return ImageInput{}
	}
	return ImageInput{kind: kindRemoteURL, text: strings.TrimSpace(url)}
}

// IsZero reports whether the input carries no payload at all. The batch
// screener skips zero inputs without spending provider calls.
func (in ImageInput) IsZero() bool {
	return in.kind == kindEmpty
}

// normalizer decodes any accepted input variant and transcodes it to a
// JPEG the vision provider accepts.
type normalizer struct {
	httpClient *http.Client
}

func newNormalizer(fetchTimeout time.Duration) *normalizer {
	return &normalizer{
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

func (n *normalizer) Normalize(ctx context.Context, in ImageInput) ([]byte, error) {
	raw, err := n.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	return transcode(raw)
}

func (n *normalizer) resolve(ctx context.Context, in ImageInput) ([]byte, error) {
	switch in.kind {
	case kindRawBytes:
		return in.data, nil
	case kindDataURL:
		comma := strings.Index(in.text, ",")
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data url", ErrUnsupportedFormat)
		}
		return decodeBase64(in.text[comma+1:])
	case kindPlainBase64:
		return decodeBase64(in.text)
	case kindRemoteURL:
		return n.fetch(ctx, in.text)
	default:
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}
}

func (n *normalizer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return data, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return data, nil
		}
		return nil, fmt.Errorf("%w: invalid base64", ErrUnsupportedFormat)
	}
	return data, nil
}

// transcode re-encodes the buffer as JPEG because the provider accepts only
// a narrow format set. Decode failure is an UnsupportedFormat rejection,
// never a silent pass-through.
func transcode(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: transcodeQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return buf.Bytes(), nil
}
