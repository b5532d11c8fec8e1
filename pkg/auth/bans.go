package auth

// RecordFailure advances the failed login counter for an IP and reports
// whether this failure crossed the ban threshold.
func (s *Service) RecordFailure(ip string) bool {
	threshold := s.config.WrongAttemptsCount
	if threshold <= 0 {
		return false
	}

	s.bansMu.Lock()
	defer s.bansMu.Unlock()

	s.fails[ip]++
	return s.fails[ip] == threshold
}

// IsBanned reports whether an IP has reached the failed login threshold.
func (s *Service) IsBanned(ip string) bool {
	threshold := s.config.WrongAttemptsCount
	if threshold <= 0 {
		return false
	}

	s.bansMu.Lock()
	defer s.bansMu.Unlock()

	return s.fails[ip] >= threshold
}

// ClearFailures drops the failed login counter for an IP after a successful
// login.
func (s *Service) ClearFailures(ip string) {
	s.bansMu.Lock()
	defer s.bansMu.Unlock()

	delete(s.fails, ip)
}

// ResetBans clears every failed login counter.
func (s *Service) ResetBans() {
	s.bansMu.Lock()
	defer s.bansMu.Unlock()

	s.fails = map[string]int{}
}
