// Package content defines the shared content item, its variants and the
// storage contract every backend implements.
package content

import "time"

// Kind tags the variant of a content item.
type Kind string

const (
	KindCode  Kind = "code"
	KindLink  Kind = "link"
	KindImage Kind = "img"
)

// DefaultLanguage is stored for code snippets submitted without a language.
const DefaultLanguage = "plaintext"

// ParseKind maps a wire tag to a Kind. "image" is accepted as an alias of "img".
func ParseKind(s string) (Kind, bool) {
	switch s {
	case string(KindCode):
		return KindCode, true
	case string(KindLink):
		return KindLink, true
	case string(KindImage), "image":
		return KindImage, true
	default:
		return "", false
	}
}

// Item is one shared code snippet, link or image.
type Item struct {
	ShortID   ShortID
	Kind      Kind
	Content   string // code text or link target
	Language  string // code only
	FilePath  string // image only, a time-limited retrieval URL
	CreatedAt time.Time
	ExpiresAt time.Time
	Views     int64
}

// Expired reports whether the item is past its expiry at now.
// A zero ExpiresAt never expires.
func (i *Item) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Clone returns a copy that shares no state with i.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}

	c := *i

	return &c
}
