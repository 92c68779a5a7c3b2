package media

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
)

// sniffLen bounds how much of the file the MIME classifier reads. Matches
// net/http's sniffing window; type detection stays cheap for large files.
const sniffLen = 512

// HashFile computes the hex SHA-256 digest over the full byte stream of a file.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SniffMime classifies a file by its leading bytes, never by its extension.
func SniffMime(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for sniffing: %w", path, err)
	}
	defer file.Close()

	buf := make([]byte, sniffLen)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read %s for sniffing: %w", path, err)
	}
	buf = buf[:n]

	if mime := sniffContainerFormat(buf); mime != "" {
		return mime, nil
	}
	return http.DetectContentType(buf), nil
}

// sniffContainerFormat recognizes a few media containers that
// http.DetectContentType reports as application/octet-stream.
func sniffContainerFormat(buf []byte) string {
	if len(buf) >= 12 && bytes.Equal(buf[4:8], []byte("ftyp")) {
		brand := string(buf[8:12])
		switch brand {
		case "qt  ":
			return "video/quicktime"
		case "M4A ", "M4B ":
			return "audio/mp4"
		default:
			// isom, mp41, mp42, avc1 and friends
			return "video/mp4"
		}
	}
	if len(buf) >= 4 && bytes.Equal(buf[:4], []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		return "video/x-matroska"
	}
	if len(buf) >= 4 && bytes.Equal(buf[:4], []byte("fLaC")) {
		return "audio/flac"
	}
	// APNG: PNG signature with an acTL chunk before the first IDAT
	if len(buf) >= 8 && bytes.Equal(buf[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}) {
		idat := bytes.Index(buf, []byte("IDAT"))
		actl := bytes.Index(buf, []byte("acTL"))
		if actl != -1 && (idat == -1 || actl < idat) {
			return "image/apng"
		}
	}
	return ""
}

// IsVisualMime reports whether the sniffed type goes through face extraction.
func IsVisualMime(mime string) bool {
	switch {
	case len(mime) >= 6 && mime[:6] == "image/":
		return true
	case len(mime) >= 6 && mime[:6] == "video/":
		return true
	}
	return false
}

// IsAnimatedImageMime reports whether the type is an animated-image container
// that is sampled by frame index rather than timestamp.
func IsAnimatedImageMime(mime string) bool {
	switch mime {
	case "image/gif", "image/webp", "image/apng":
		return true
	}
	return false
}
