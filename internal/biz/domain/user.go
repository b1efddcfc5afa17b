package domain

// maskedReader replaces the reader's identity in reveal attributions when
// privacy mode is on
const maskedReader = "Someone"

// User holds per-user preference flags. The lifecycle core only consults
// it when composing the reveal attribution string.
type User struct {
	ID            string
	Username      string // without "@", may be empty
	FirstName     string
	PrivacyMode   bool // hide identity in read receipts
	Notifications bool // notify sender when their whisper is read
}

// DisplayName returns how the user is shown in attributions
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

// Attribution returns the reveal attribution for this user, masked when
// privacy mode is enabled
func (u *User) Attribution() string {
	if u.PrivacyMode {
		return maskedReader
	}
	return u.DisplayName()
}

// NewUser creates a user record with default preferences
func NewUser(id, username, firstName string) *User {
	return &User{
		ID:            id,
		Username:      username,
		FirstName:     firstName,
		Notifications: true,
	}
}
