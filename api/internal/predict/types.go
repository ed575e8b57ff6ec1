package predict

import "errors"

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrUnsupportedImage = errors.New("unsupported image type, send a JPEG, PNG, GIF or WEBP")
	ErrUnknownKind      = errors.New("unknown prediction kind")
)

// Request is one user action: an image and the operation to run on it.
type Request struct {
	Kind     Kind
	Image    []byte
	Filename string // optional, derived from the image type when empty
	UserID   *int64 // optional, the session provider is asked when nil
}

// Result is the normalized backend answer.
type Result struct {
	Kind           Kind
	Label          string   // class name or caption
	Confidence     *float64 // [0,1], classification kinds only
	ResultAssetURL string   // derived image, denoising only
}

// SessionProvider is consulted at call time for the caller's identity.
type SessionProvider interface {
	// Identity returns the user ID and bearer token; ok is false for anonymous use.
	Identity() (userID int64, token string, ok bool)
}

// Anonymous never reports a user.
type Anonymous struct{}

func (Anonymous) Identity() (int64, string, bool) { return 0, "", false }

// Int64 is a helper for Request.UserID.
func Int64(v int64) *int64 { return &v }
