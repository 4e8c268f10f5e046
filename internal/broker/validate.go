package broker

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/serroba/shortshare/internal/content"
)

const (
	MaxCodeBytes  = 50 * 1024
	MaxLinkChars  = 2048
	MaxImageBytes = 5 * 1024 * 1024
)

// allowedImageTypes maps accepted MIME types to stored file extensions.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Limits bounds submission sizes.
type Limits struct {
	MaxCodeBytes  int
	MaxLinkChars  int
	MaxImageBytes int
}

// DefaultLimits returns the stock submission limits.
func DefaultLimits() Limits {
	return Limits{
		MaxCodeBytes:  MaxCodeBytes,
		MaxLinkChars:  MaxLinkChars,
		MaxImageBytes: MaxImageBytes,
	}
}

func (l Limits) validateCode(p content.Code) error {
	if strings.TrimSpace(p.Text) == "" {
		return content.Invalid("code", "must not be empty")
	}

	if len(p.Text) > l.MaxCodeBytes {
		return content.TooLarge("code", fmt.Sprintf("exceeds %d bytes", l.MaxCodeBytes))
	}

	return nil
}

func (l Limits) validateLink(p content.Link) error {
	if p.URL == "" {
		return content.Invalid("url", "must not be empty")
	}

	if utf8.RuneCountInString(p.URL) > l.MaxLinkChars {
		return content.TooLarge("url", fmt.Sprintf("exceeds %d characters", l.MaxLinkChars))
	}

	if !isAbsoluteHTTPURL(p.URL) {
		return content.Invalid("url", "must be an absolute http or https URL")
	}

	return nil
}

// validateImage sniffs the payload rather than trusting the declared type
// and returns the canonical MIME type and file extension.
func (l Limits) validateImage(p content.Image) (string, string, error) {
	if len(p.Data) == 0 {
		return "", "", content.Invalid("file", "must not be empty")
	}

	if len(p.Data) > l.MaxImageBytes {
		return "", "", content.TooLarge("file", fmt.Sprintf("exceeds %d bytes", l.MaxImageBytes))
	}

	detected := mimetype.Detect(p.Data)

	for mt, ext := range allowedImageTypes {
		if detected.Is(mt) {
			return mt, ext, nil
		}
	}

	return "", "", content.Invalid("file", fmt.Sprintf("unsupported type %s", detected.String()))
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
