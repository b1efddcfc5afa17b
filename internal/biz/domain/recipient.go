package domain

import (
	"errors"
	"strings"
)

// RecipientKind tells how a recipient descriptor should be matched
type RecipientKind string

const (
	RecipientHandle    RecipientKind = "handle"
	RecipientNumericID RecipientKind = "numeric_id"
)

// ErrBadRecipient is returned for descriptors that parse as neither a
// handle nor a numeric id. Malformed recipients are rejected at creation
// time, never at match time.
var ErrBadRecipient = errors.New("recipient must be @handle or a numeric id")

// Recipient is the addressing descriptor stored on a whisper
type Recipient struct {
	Descriptor string        // handle without "@", or the numeric id string
	Kind       RecipientKind
}

// Identity describes a requester as seen by the transport
type Identity struct {
	UserID string
	Handle string // without "@", empty if the user has none
}

// ParseRecipient validates and normalizes a raw recipient token.
// A leading "@" always means handle, even when the body is all digits;
// the numeric interpretation applies only to bare digit runs.
func ParseRecipient(raw string) (Recipient, error) {
	raw = strings.TrimSpace(raw)
	if handle, ok := strings.CutPrefix(raw, "@"); ok {
		if !validHandle(handle) {
			return Recipient{}, ErrBadRecipient
		}
		return Recipient{Descriptor: handle, Kind: RecipientHandle}, nil
	}
	if raw == "" || !allDigits(raw) {
		return Recipient{}, ErrBadRecipient
	}
	return Recipient{Descriptor: raw, Kind: RecipientNumericID}, nil
}

// Matches decides whether the requester is the addressed recipient.
// Handle matching is case-insensitive; a requester with no handle never
// matches a handle-addressed whisper. Numeric matching is exact.
func (r Recipient) Matches(identity Identity) bool {
	switch r.Kind {
	case RecipientHandle:
		return identity.Handle != "" && strings.EqualFold(identity.Handle, r.Descriptor)
	case RecipientNumericID:
		return identity.UserID == r.Descriptor
	}
	return false
}

// Display returns the recipient as shown to users
func (r Recipient) Display() string {
	if r.Kind == RecipientHandle {
		return "@" + r.Descriptor
	}
	return "user " + r.Descriptor
}

func validHandle(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
