package stats

import (
	"sync"
	"sync/atomic"

	"github.com/robinjoseph08/golib/logger"
)

// Stats collects the server's usage counters. Increment methods are safe
// for concurrent use from request handlers.
type Stats struct {
	booksSent        atomic.Int64
	imagesSent       atomic.Int64
	successfulLogins atomic.Int64
	wrongLogins      atomic.Int64
	bannedClients    atomic.Int64

	mu      sync.Mutex
	clients map[string]struct{}
}

func New() *Stats {
	return &Stats{clients: map[string]struct{}{}}
}

func (s *Stats) BookSent()        { s.booksSent.Add(1) }
func (s *Stats) ImageSent()       { s.imagesSent.Add(1) }
func (s *Stats) SuccessfulLogin() { s.successfulLogins.Add(1) }
func (s *Stats) WrongLogin()      { s.wrongLogins.Add(1) }
func (s *Stats) ClientBanned()    { s.bannedClients.Add(1) }

// ClientSeen records a client fingerprint for the unique-client count.
func (s *Stats) ClientSeen(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[fingerprint] = struct{}{}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	BooksSent        int64
	ImagesSent       int64
	SuccessfulLogins int64
	WrongLogins      int64
	BannedClients    int64
	UniqueClients    int
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	unique := len(s.clients)
	s.mu.Unlock()

	return Snapshot{
		BooksSent:        s.booksSent.Load(),
		ImagesSent:       s.imagesSent.Load(),
		SuccessfulLogins: s.successfulLogins.Load(),
		WrongLogins:      s.wrongLogins.Load(),
		BannedClients:    s.bannedClients.Load(),
		UniqueClients:    unique,
	}
}

// Log writes the current counters as one structured line.
func (s *Stats) Log(log logger.Logger) {
	snap := s.Snapshot()
	log.Info("statistics", logger.Data{
		"books_sent":        snap.BooksSent,
		"images_sent":       snap.ImagesSent,
		"successful_logins": snap.SuccessfulLogins,
		"wrong_logins":      snap.WrongLogins,
		"banned_clients":    snap.BannedClients,
		"unique_clients":    snap.UniqueClients,
	})
}
