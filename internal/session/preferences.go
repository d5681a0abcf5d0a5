package session

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Preferences are a user's alert contact settings.
type Preferences struct {
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	EnableEmail       bool   `json:"enable_email"`
	EnableSMS         bool   `json:"enable_sms"`
	EnableCall        bool   `json:"enable_call"`
	AutoCallEmergency bool   `json:"auto_call_emergency"`
}

// DefaultPreferences is returned for users that never stored preferences.
func DefaultPreferences() Preferences {
	return Preferences{EnableEmail: true}
}

// Validate checks the contact fields.
func (p *Preferences) Validate() error {
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return fmt.Errorf("invalid email %q: %w", p.Email, err)
		}
	}
	return nil
}

// EmailRecipient returns the address alerts should be mailed to, if any.
func (p Preferences) EmailRecipient() (string, bool) {
	if !p.EnableEmail || p.Email == "" {
		return "", false
	}
	return p.Email, true
}

// PreferenceStore keeps preferences in memory, keyed by user id.
type PreferenceStore struct {
	cache *cache.Cache
}

// NewPreferenceStore creates a store. A ttl of zero keeps entries until
// deleted.
func NewPreferenceStore(ttl time.Duration) *PreferenceStore {
	if ttl <= 0 {
		return &PreferenceStore{cache: cache.New(cache.NoExpiration, 0)}
	}
	return &PreferenceStore{cache: cache.New(ttl, ttl*2)}
}

// Get returns the stored preferences for userID, or the defaults.
func (s *PreferenceStore) Get(userID string) Preferences {
	if cached, found := s.cache.Get(userID); found {
		if p, ok := cached.(Preferences); ok {
			return p
		}
	}
	return DefaultPreferences()
}

// Set validates and stores p for userID.
func (s *PreferenceStore) Set(userID string, p Preferences) error {
	if userID == "" {
		return ErrMissingUser
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.cache.Set(userID, p, cache.DefaultExpiration)
	return nil
}

// Delete removes userID's preferences.
func (s *PreferenceStore) Delete(userID string) { s.cache.Delete(userID) }

// Len is the number of users with stored preferences.
func (s *PreferenceStore) Len() int { return s.cache.ItemCount() }
