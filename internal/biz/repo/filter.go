package repo

import "context"

// FilterRepo is the content review interface. Implementations decide
// whether whisper content is acceptable before it is persisted.
type FilterRepo interface {
	// AllowContent reports whether the given text may be stored.
	// reason is human-readable and only meaningful when allowed is false.
	AllowContent(ctx context.Context, text string) (allowed bool, reason string, err error)
}
