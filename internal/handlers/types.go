package handlers

import (
	"mime/multipart"
	"time"
)

// SubmitCodeRequest is the request body for sharing a code snippet.
type SubmitCodeRequest struct {
	Body struct {
		Code     string `doc:"Snippet text, at most 51200 bytes" example:"fmt.Println(\"hi\")" json:"code"               required:"false"`
		Language string `doc:"Highlighting hint"                 example:"go"                  json:"language,omitempty"`
	}
}

// SubmitLinkRequest is the request body for sharing a link.
type SubmitLinkRequest struct {
	Body struct {
		URL string `doc:"Absolute http or https URL" example:"https://example.com/very/long/path" json:"url" required:"false"`
	}
}

// SubmitImageRequest carries a multipart upload with a single "file" part.
type SubmitImageRequest struct {
	RawBody multipart.Form
}

// SubmitResponse is returned for every successful submission.
type SubmitResponse struct {
	Location string `doc:"The share URL" header:"Location"`
	Body     SubmitBody
}

type SubmitBody struct {
	ShortID   string    `doc:"The short identifier"              example:"a1b2"                          json:"shortId"`
	Kind      string    `doc:"code, link or img"                 example:"code"                          json:"kind"`
	URL       string    `doc:"The share URL"                     example:"http://localhost:8888/code/a1b2" json:"url"`
	ImageURL  string    `doc:"Time-limited image retrieval URL"                                          json:"imageUrl,omitempty"`
	ExpiresAt time.Time `doc:"When the content stops resolving"                                          json:"expiresAt"`
}

// ResolveRequest addresses stored content by its short identifier.
type ResolveRequest struct {
	ShortID string `doc:"The short identifier, case-insensitive" example:"a1b2" path:"shortId"`
}

// ResolveResponse is a 200 with the content for code and images, or a 302
// to the stored target for links.
type ResolveResponse struct {
	Status   int
	Location string `doc:"Redirect target for links" header:"Location"`
	Body     ResolvedBody
}

type ResolvedBody struct {
	ShortID   string     `json:"shortId"`
	Kind      string     `json:"kind"`
	Views     int64      `json:"views"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Code      string     `json:"code,omitempty"`
	Language  string     `json:"language,omitempty"`
	URL       string     `json:"url,omitempty"`
	ImageURL  string     `json:"imageUrl,omitempty"`
}

// RecentRequest selects how many items the admin listing returns.
type RecentRequest struct {
	Limit int `default:"10" doc:"Maximum items, clamped to 1..100" query:"limit"`
}

type RecentResponse struct {
	Body struct {
		Items []RecentItem `json:"items"`
	}
}

type RecentItem struct {
	ShortID   string     `json:"shortId"`
	Kind      string     `json:"kind"`
	Language  string     `json:"language,omitempty"`
	Views     int64      `json:"views"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	URL       string     `json:"url"`
}
