// Package analytics carries content lifecycle events from the API to
// asynchronous consumers.
package analytics

import "time"

const (
	TopicContentCreated = "content.created"
	TopicContentViewed  = "content.viewed"
)

// ContentCreatedEvent is emitted after a submission is stored.
type ContentCreatedEvent struct {
	ShortID   string    `json:"shortId"`
	Kind      string    `json:"kind"`
	Language  string    `json:"language,omitempty"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	ClientIP  string    `json:"clientIp"`
	UserAgent string    `json:"userAgent"`
}

// ContentViewedEvent is emitted on every successful resolution.
type ContentViewedEvent struct {
	ShortID   string    `json:"shortId"`
	Kind      string    `json:"kind"`
	Views     int64     `json:"views"`
	ViewedAt  time.Time `json:"viewedAt"`
	ClientIP  string    `json:"clientIp"`
	UserAgent string    `json:"userAgent"`
	Referrer  string    `json:"referrer,omitempty"`
}
