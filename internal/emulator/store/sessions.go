package store

import (
	"errors"
	"strconv"
	"time"
)

// PutSession stores a session token with its expiry.
func (s *Store) PutSession(token string, expiresAt time.Time) error {
	return s.putString(BucketSessions, token, strconv.FormatInt(expiresAt.Unix(), 10))
}

// SessionExpiry returns the expiry of a session token.
func (s *Store) SessionExpiry(token string) (time.Time, error) {
	raw, err := s.getString(BucketSessions, token)
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, errors.Join(ErrInvalid, err)
	}
	return time.Unix(unix, 0), nil
}

// DeleteSession removes a session token.
func (s *Store) DeleteSession(token string) error {
	return s.deleteString(BucketSessions, token)
}
