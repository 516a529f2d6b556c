package prefs

import (
	"context"
	"errors"
)

// Defaults applied whenever a field has never been set for a user.
const (
	DefaultFirstName    = "Friend"
	DefaultBibleVersion = "NIV"
)

var ErrNotFound = errors.New("preferences not found")

// Preferences is a user's durable companion profile.
type Preferences struct {
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	BibleVersion string `json:"bibleVersion"`
	Denomination string `json:"denomination,omitempty"`
	Birthday     string `json:"birthday,omitempty"`
	AvatarName   string `json:"avatarName,omitempty"`
}

// Update carries the fields of a save call. Nil fields are left untouched in
// the stored record (merge, not replace).
type Update struct {
	FirstName    *string
	BibleVersion *string
	Denomination *string
	Birthday     *string
	AvatarName   *string
}

// Store persists per-user preferences.
type Store interface {
	// Get returns the stored record, or ErrNotFound when the user has no
	// record yet. Defaulting is the caller's concern (see WithDefaults).
	Get(ctx context.Context, userID string) (Preferences, error)
	// Save merges the update into the user's record, creating it if absent.
	Save(ctx context.Context, userID string, update Update) error
	// Delete removes the user's record entirely.
	Delete(ctx context.Context, userID string) error
	Close() error
}

// WithDefaults fills unset display fields with the friendly defaults.
func WithDefaults(p Preferences) Preferences {
	if p.FirstName == "" {
		p.FirstName = DefaultFirstName
	}
	if p.BibleVersion == "" {
		p.BibleVersion = DefaultBibleVersion
	}
	return p
}

// Defaults returns the record handed out for users with no stored preferences.
func Defaults(userID string) Preferences {
	return WithDefaults(Preferences{UserID: userID})
}

func (p *Preferences) apply(update Update) {
	if update.FirstName != nil {
		p.FirstName = *update.FirstName
	}
	if update.BibleVersion != nil {
		p.BibleVersion = *update.BibleVersion
	}
	if update.Denomination != nil {
		p.Denomination = *update.Denomination
	}
	if update.Birthday != nil {
		p.Birthday = *update.Birthday
	}
	if update.AvatarName != nil {
		p.AvatarName = *update.AvatarName
	}
}
