package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/tinyopds/tinyopds/pkg/auth"
	"github.com/tinyopds/tinyopds/pkg/binder"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/library"
	"github.com/tinyopds/tinyopds/pkg/opds"
	"github.com/tinyopds/tinyopds/pkg/stats"
	"github.com/uptrace/bun"
	"golang.org/x/net/netutil"
)

const (
	// maxConnections caps concurrent clients; further accepts wait in the
	// kernel backlog until a slot frees up.
	maxConnections = 100
	maxHeaderCount = 100
	maxPostBody    = 64 << 10 // 64 KiB
	maxHeaderBytes = 8 << 10  // 8 KiB

	readTimeout    = 30 * time.Second
	writeTimeout   = 30 * time.Second
	requestTimeout = time.Minute

	serverSignature = "TinyOPDS/2.0"
)

// New assembles the catalog server: binder, request logging, recovery,
// path normalisation, authentication and the catalog routes on one echo
// instance, wrapped in an http.Server with the transport limits set.
func New(cfg *config.Config, db *bun.DB, st *stats.Stats) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Pre(opds.NormalizeMiddleware(cfg))
	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())
	e.Use(limitsMiddleware())

	authService := auth.NewService(cfg, db)
	authMiddleware := auth.NewMiddleware(authService, st)
	e.Use(authMiddleware.Authenticate)

	store := library.NewService(db, cfg.CyrillicFirst)
	opds.RegisterRoutes(e, cfg, store, st)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:        e,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}

	return srv, nil
}

// Listen opens the TCP listener the server runs on: per-connection socket
// tuning with the connection cap on top.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if tcp, ok := ln.(*net.TCPListener); ok {
		ln = &tunedListener{tcp}
	}
	return netutil.LimitListener(ln, maxConnections), nil
}

type tunedListener struct {
	*net.TCPListener
}

func (l *tunedListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	_ = conn.SetNoDelay(true)
	_ = conn.SetWriteBuffer(128 << 10)
	_ = conn.SetReadBuffer(64 << 10)
	_ = conn.SetKeepAlive(true)
	_ = conn.SetKeepAlivePeriod(10 * time.Minute)
	return conn, nil
}

// limitsMiddleware enforces the per-request guards and stamps the standard
// response headers. Feeds must never be cached: readers poll the new-books
// feed and a cached copy would hide arrivals.
func limitsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if headerCount(req.Header) > maxHeaderCount {
				return errcodes.MalformedRequest("too many headers")
			}
			if req.Method == http.MethodPost {
				if req.ContentLength < 0 {
					return errcodes.MalformedRequest("content length required")
				}
				if req.ContentLength > maxPostBody {
					return errcodes.MalformedRequest("request body too large")
				}
				req.Body = http.MaxBytesReader(c.Response(), req.Body, maxPostBody)
			}

			ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
			defer cancel()
			c.SetRequest(req.WithContext(ctx))

			h := c.Response().Header()
			h.Set("Server", serverSignature)
			h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
			h.Set("Cache-Control", "no-cache")

			return next(c)
		}
	}
}

func headerCount(h http.Header) int {
	n := 0
	for _, values := range h {
		n += len(values)
	}
	return n
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
