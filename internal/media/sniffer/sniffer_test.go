package sniffer

import (
	"errors"
	"testing"
)

func TestDetectHead(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want MediaType
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, TypeJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}, TypePNG},
		{"gif87a", []byte("GIF87a......"), TypeGIF},
		{"gif89a", []byte("GIF89a......"), TypeGIF},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), TypeWEBP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := DetectHead(tc.head)
			if err != nil {
				t.Fatalf("DetectHead: %v", err)
			}
			if result.Type != tc.want {
				t.Errorf("Type = %q, want %q", result.Type, tc.want)
			}
		})
	}
}

func TestDetectHeadRejectsUnknown(t *testing.T) {
	for _, head := range [][]byte{nil, {}, []byte("plain text"), []byte("<svg/>")} {
		if _, err := DetectHead(head); !errors.Is(err, ErrUnknownType) {
			t.Errorf("DetectHead(%q) err = %v, want ErrUnknownType", head, err)
		}
	}
}
