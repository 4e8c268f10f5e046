package content

// Payload is a validated-or-not submission. The set of implementations is
// closed: Code, Link and Image.
type Payload interface {
	Kind() Kind
	payload()
}

// Code is a code snippet submission.
type Code struct {
	Text     string
	Language string
}

// Link is an external URL submission.
type Link struct {
	URL string
}

// Image is an uploaded image submission.
type Image struct {
	Filename    string
	ContentType string // as declared by the client
	Data        []byte
}

func (Code) Kind() Kind  { return KindCode }
func (Link) Kind() Kind  { return KindLink }
func (Image) Kind() Kind { return KindImage }

func (Code) payload()  {}
func (Link) payload()  {}
func (Image) payload() {}
