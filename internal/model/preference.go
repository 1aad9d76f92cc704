package model

import (
	"errors"
	"fmt"
	"time"
)

type DigestFrequency string

const (
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
	DigestNever  DigestFrequency = "never"
)

const (
	DefaultLeadTimeHours = 24
	MinLeadTimeHours     = 1
	MaxLeadTimeHours     = 168
)

var ErrInvalidPreference = errors.New("invalid preference")

// Preference holds a user's notification settings.
type Preference struct {
	UserID          int64           `json:"user_id"`
	EmailEnabled    bool            `json:"email_enabled"`
	BrowserEnabled  bool            `json:"browser_enabled"`
	LeadTimeHours   int             `json:"due_date_hours"`
	DigestFrequency DigestFrequency `json:"digest_frequency"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DefaultPreference is what a user gets before they ever touch their settings.
func DefaultPreference(userID int64) Preference {
	return Preference{
		UserID:          userID,
		EmailEnabled:    true,
		BrowserEnabled:  true,
		LeadTimeHours:   DefaultLeadTimeHours,
		DigestFrequency: DigestDaily,
	}
}

func (p Preference) Validate() error {
	if p.LeadTimeHours < MinLeadTimeHours || p.LeadTimeHours > MaxLeadTimeHours {
		return fmt.Errorf("%w: due_date_hours must be between %d and %d",
			ErrInvalidPreference, MinLeadTimeHours, MaxLeadTimeHours)
	}
	switch p.DigestFrequency {
	case DigestDaily, DigestWeekly, DigestNever:
	default:
		return fmt.Errorf("%w: digest_frequency must be one of daily, weekly, never", ErrInvalidPreference)
	}
	return nil
}

// PreferencePatch is a partial update; nil fields are left unchanged.
type PreferencePatch struct {
	EmailEnabled    *bool            `json:"email_enabled"`
	BrowserEnabled  *bool            `json:"browser_enabled"`
	LeadTimeHours   *int             `json:"due_date_hours"`
	DigestFrequency *DigestFrequency `json:"digest_frequency"`
}

// Apply returns p with the patch's non-nil fields applied.
func (pp PreferencePatch) Apply(p Preference) Preference {
	if pp.EmailEnabled != nil {
		p.EmailEnabled = *pp.EmailEnabled
	}
	if pp.BrowserEnabled != nil {
		p.BrowserEnabled = *pp.BrowserEnabled
	}
	if pp.LeadTimeHours != nil {
		p.LeadTimeHours = *pp.LeadTimeHours
	}
	if pp.DigestFrequency != nil {
		p.DigestFrequency = *pp.DigestFrequency
	}
	return p
}
