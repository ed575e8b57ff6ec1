// Package session keeps the logged-in user of each chat in memory and
// exposes it to the prediction client.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"artvision-bot/api/internal/account"
)

type Session struct {
	User        account.User
	AccessToken string
	ExpiresAt   time.Time // zero when the token carries no expiry
}

// FromLogin builds a session from a login answer. When the access token is
// a JWT its exp claim becomes ExpiresAt; the signature is not checked, the
// backend remains the authority.
func FromLogin(r account.LoginResult) Session {
	return Session{User: r.User, AccessToken: r.AccessToken, ExpiresAt: TokenExpiry(r.AccessToken)}
}

// TokenExpiry returns the exp claim of a JWT, or the zero time for opaque
// tokens and tokens without exp.
func TokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

var ErrNotLoggedIn = errors.New("not logged in")

// Store maps a chat ID to its Session.
type Store struct {
	m   sync.Map // int64 -> Session
	now func() time.Time
}

func NewStore() *Store { return &Store{now: time.Now} }

// Get returns the chat's session. Expired sessions are removed and reported
// as missing.
func (s *Store) Get(chatID int64) (Session, bool) {
	v, ok := s.m.Load(chatID)
	if !ok {
		return Session{}, false
	}
	sess := v.(Session)
	if sess.Expired(s.now()) {
		s.m.Delete(chatID)
		return Session{}, false
	}
	return sess, true
}

func (s *Store) Set(chatID int64, sess Session) { s.m.Store(chatID, sess) }

func (s *Store) Delete(chatID int64) { s.m.Delete(chatID) }

// UpdateUser replaces the stored user after a profile change.
func (s *Store) UpdateUser(chatID int64, u account.User) error {
	sess, ok := s.Get(chatID)
	if !ok {
		return ErrNotLoggedIn
	}
	sess.User = u
	s.Set(chatID, sess)
	return nil
}

// Provider returns the identity source for one chat. It reads the store on
// every call, so a login or logout is seen by the next request.
func (s *Store) Provider(chatID int64) Provider {
	return Provider{store: s, chatID: chatID}
}

type Provider struct {
	store  *Store
	chatID int64
}

func (p Provider) Identity() (int64, string, bool) {
	sess, ok := p.store.Get(p.chatID)
	if !ok {
		return 0, "", false
	}
	return sess.User.ID, sess.AccessToken, true
}
