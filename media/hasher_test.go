package media

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHashFile(t *testing.T) {
	// echo -n "hello world" | sha256sum
	path := writeTemp(t, "hello.txt", []byte("hello world"))
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	empty := writeTemp(t, "empty", nil)
	got, err = HashFile(empty)
	if err != nil {
		t.Fatalf("HashFile failed on empty file: %v", err)
	}
	if got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("empty file: got %s", got)
	}
}

func TestSniffMime(t *testing.T) {
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	mp4Header := append([]byte{0, 0, 0, 24}, []byte("ftypisom")...)
	mkvHeader := []byte{0x1a, 0x45, 0xdf, 0xa3, 0x01, 0x02}
	apngHeader := append(append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a},
		0, 0, 0, 8), []byte("acTLxxxxIDAT")...)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "png", data: pngHeader, want: "image/png"},
		{name: "mp4", data: mp4Header, want: "video/mp4"},
		{name: "matroska", data: mkvHeader, want: "video/x-matroska"},
		{name: "flac", data: []byte("fLaCxxxx"), want: "audio/flac"},
		{name: "apng", data: apngHeader, want: "image/apng"},
		{name: "plain text", data: []byte("just some words"), want: "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.name, tt.data)
			got, err := SniffMime(path)
			if err != nil {
				t.Fatalf("SniffMime failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMimePredicates(t *testing.T) {
	if !IsVisualMime("image/jpeg") || !IsVisualMime("video/mp4") {
		t.Error("images and videos are visual")
	}
	if IsVisualMime("audio/flac") || IsVisualMime("application/pdf") {
		t.Error("audio and documents are not visual")
	}
	if !IsAnimatedImageMime("image/gif") || !IsAnimatedImageMime("image/apng") || !IsAnimatedImageMime("image/webp") {
		t.Error("gif, apng and webp are animated-image containers")
	}
	if IsAnimatedImageMime("image/jpeg") {
		t.Error("jpeg is not animated")
	}
}
