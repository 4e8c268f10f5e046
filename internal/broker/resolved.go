package broker

import (
	"time"

	"github.com/serroba/shortshare/internal/content"
)

// Resolved is the outcome of a successful resolution. The set of
// implementations is closed: ResolvedCode, ResolvedLink and ResolvedImage.
type Resolved interface {
	Metadata() Meta
	resolved()
}

// Meta is shared by every resolved variant.
type Meta struct {
	ShortID   content.ShortID
	Kind      content.Kind
	Views     int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type ResolvedCode struct {
	Meta
	Code     string
	Language string
}

// ResolvedLink carries a redirect target that passed read-time validation.
type ResolvedLink struct {
	Meta
	Target string
}

type ResolvedImage struct {
	Meta
	ImageURL string
}

func (m Meta) Metadata() Meta { return m }

func (ResolvedCode) resolved()  {}
func (ResolvedLink) resolved()  {}
func (ResolvedImage) resolved() {}
