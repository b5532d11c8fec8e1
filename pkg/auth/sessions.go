package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/tinyopds/tinyopds/pkg/library"
)

const (
	// SessionValidity is how long a session stays valid after its last use.
	SessionValidity = 30 * 24 * time.Hour

	// sweepEvery is the number of session inserts between cleanups of
	// expired rows.
	sweepEvery = 100

	tokenBytes = 32
)

// CreateSession mints a session for an authenticated client and persists it.
func (s *Service) CreateSession(ctx context.Context, ip, username string) (*library.Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &library.Session{
		Token:      token,
		IPAddress:  ip,
		Username:   username,
		CreatedAt:  now,
		LastAccess: now,
	}
	_, err = s.db.NewInsert().Model(session).Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if s.sessionInserts.Add(1)%sweepEvery == 0 {
		if err := s.sweepSessions(ctx); err != nil {
			// The login still worked; cleanup gets another chance later.
			s.log.Err(err).Warn("session sweep error")
		}
	}

	return session, nil
}

// ValidateSession returns the session for a token when it exists, has not
// expired, and was minted for the same peer IP. Anything else returns nil
// without an error so the caller can fall back to other checks.
func (s *Service) ValidateSession(ctx context.Context, token, ip string) (*library.Session, error) {
	session := &library.Session{}
	err := s.db.NewSelect().
		Model(session).
		Where("s.token = ?", token).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	if session.IPAddress != ip {
		return nil, nil
	}
	if time.Since(session.LastAccess) > SessionValidity {
		return nil, nil
	}

	session.LastAccess = time.Now()
	_, err = s.db.NewUpdate().
		Model(session).
		Column("last_access").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return session, nil
}

func (s *Service) sweepSessions(ctx context.Context) error {
	cutoff := time.Now().Add(-SessionValidity)
	_, err := s.db.NewDelete().
		Model((*library.Session)(nil)).
		Where("last_access < ?", cutoff).
		Exec(ctx)
	return errors.WithStack(err)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(b), nil
}
