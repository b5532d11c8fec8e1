package auth

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing.
const BcryptCost = 12

// Service handles authentication operations: credential checks, sessions,
// ban counters, and the remembered-clients list.
type Service struct {
	config *config.Config
	db     *bun.DB
	log    logger.Logger

	// credentials maps usernames to bcrypt hashes. Both the username and
	// the password are case-sensitive.
	credentials map[string]string

	// seeds holds fingerprints authorized through config rather than a
	// past login.
	seeds map[string]string

	bansMu sync.Mutex
	fails  map[string]int

	sessionInserts atomic.Int64
}

// NewService creates a new auth service. Configured credentials are hashed
// here so plaintext passwords never leave the constructor.
func NewService(cfg *config.Config, db *bun.DB) *Service {
	return &Service{
		config:      cfg,
		db:          db,
		log:         logger.New(),
		credentials: parseCredentials(cfg.Credentials),
		seeds:       parseAuthorizedClients(cfg.AuthorizedClients),
		fails:       map[string]int{},
	}
}

// VerifyCredentials reports whether a username/password pair matches the
// configured credential list.
func (s *Service) VerifyCredentials(username, password string) bool {
	hash, ok := s.credentials[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Fingerprint derives a stable client key from the peer IP alone. User-Agent
// stays out of the hash; mobile readers rotate it between releases.
func Fingerprint(ip string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(ip)).String()
}

// parseCredentials parses semicolon-separated user:pass pairs. Malformed
// entries are skipped.
func parseCredentials(list string) map[string]string {
	credentials := map[string]string{}
	for _, pair := range strings.Split(list, ";") {
		username, password, ok := strings.Cut(pair, ":")
		if !ok || username == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
		if err != nil {
			continue
		}
		credentials[username] = string(hash)
	}
	return credentials
}

func parseAuthorizedClients(list string) map[string]string {
	seeds := map[string]string{}
	for _, fingerprint := range strings.Split(list, ",") {
		fingerprint = strings.TrimSpace(fingerprint)
		if fingerprint != "" {
			seeds[fingerprint] = ""
		}
	}
	return seeds
}
