package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/tinyopds/tinyopds/pkg/library"
)

// RememberClient stores a fingerprint in the persistent authorized list so
// the client skips Basic auth on later visits.
func (s *Service) RememberClient(ctx context.Context, fingerprint, username string) error {
	client := &library.AuthorizedClient{
		Fingerprint: fingerprint,
		Username:    username,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(client).
		On("CONFLICT (fingerprint) DO NOTHING").
		Exec(ctx)
	return errors.WithStack(err)
}

// IsRememberedClient reports whether a fingerprint is authorized without
// credentials, either through a past login or the config seed list, and
// returns the username it was remembered under.
func (s *Service) IsRememberedClient(ctx context.Context, fingerprint string) (string, bool, error) {
	if username, ok := s.seeds[fingerprint]; ok {
		return username, true, nil
	}

	client := &library.AuthorizedClient{}
	err := s.db.NewSelect().
		Model(client).
		Where("ac.fingerprint = ?", fingerprint).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.WithStack(err)
	}

	return client.Username, true, nil
}
