package auth

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echologger "github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/stats"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "TinyOPDS_Session"
	// CookieMaxAge is how long the cookie is valid.
	CookieMaxAge = 30 * 24 * time.Hour
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
	stats       *stats.Stats
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service, st *stats.Stats) *Middleware {
	return &Middleware{
		authService: authService,
		stats:       st,
	}
}

// Authenticate guards feed and download routes with HTTP Basic auth backed by
// sessions and the remembered-clients list. Image requests pass through so
// readers that fetch covers outside their authenticated session keep working.
//
// The order of checks on everything else: banned IPs are refused outright,
// then a session cookie, then the remembered fingerprint, then Basic
// credentials. A failed request advances the ban counter and ends in a 401
// challenge.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.authService.config.UseHTTPAuth {
			return next(c)
		}
		if isImagePath(c.Request().URL.Path) {
			return next(c)
		}

		ctx := c.Request().Context()
		ip := c.RealIP()
		fingerprint := Fingerprint(ip)

		if m.authService.config.BanClients && m.authService.IsBanned(ip) {
			return errcodes.Banned()
		}

		if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
			session, err := m.authService.ValidateSession(ctx, cookie.Value, ip)
			if err != nil {
				return err
			}
			if session != nil {
				m.stats.ClientSeen(fingerprint)
				c.Set("username", session.Username)
				return next(c)
			}
		}

		if m.authService.config.RememberClients {
			username, remembered, err := m.authService.IsRememberedClient(ctx, fingerprint)
			if err != nil {
				return err
			}
			if remembered {
				if err := m.startSession(c, ip, username); err != nil {
					return err
				}
				m.stats.ClientSeen(fingerprint)
				c.Set("username", username)
				return next(c)
			}
		}

		username, password, hasCredentials := c.Request().BasicAuth()
		if hasCredentials && m.authService.VerifyCredentials(username, password) {
			if err := m.startSession(c, ip, username); err != nil {
				return err
			}
			if m.authService.config.RememberClients {
				if err := m.authService.RememberClient(ctx, fingerprint, username); err != nil {
					return err
				}
			}
			m.authService.ClearFailures(ip)
			m.stats.SuccessfulLogin()
			m.stats.ClientSeen(fingerprint)
			echologger.FromEchoContext(c).Info("login", logger.Data{
				"auth_event": "login",
				"username":   username,
				"ip":         ip,
			})
			c.Set("username", username)
			return next(c)
		}

		if hasCredentials {
			m.stats.WrongLogin()
			echologger.FromEchoContext(c).Info("wrong credentials", logger.Data{
				"auth_event": "wrong_credentials",
				"username":   username,
				"ip":         ip,
			})
		}
		if m.authService.RecordFailure(ip) && m.authService.config.BanClients {
			m.stats.ClientBanned()
			echologger.FromEchoContext(c).Info("client banned", logger.Data{
				"auth_event": "banned",
				"ip":         ip,
			})
		}

		return errcodes.Unauthorized("Authentication required")
	}
}

func (m *Middleware) startSession(c echo.Context, ip, username string) error {
	session, err := m.authService.CreateSession(c.Request().Context(), ip, username)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
	})

	return nil
}

// isImagePath reports whether the request is for cover art or another image
// asset. These are exempt from authentication.
func isImagePath(p string) bool {
	if strings.Contains(p, "/cover/") || strings.Contains(p, "/thumbnail/") {
		return true
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".jpeg", ".jpg", ".png", ".ico":
		return true
	}
	return false
}
