package opds

import (
	_ "embed"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/covers"
	"github.com/tinyopds/tinyopds/pkg/errcodes"
	"github.com/tinyopds/tinyopds/pkg/library"
	"github.com/tinyopds/tinyopds/pkg/stats"
)

//go:embed favicon.ico
var faviconICO []byte

// maxURLLength guards against runaway client URLs.
const maxURLLength = 2048

// RegisterRoutes registers the catalog routes. Paths arrive already
// normalised by NormalizeMiddleware, so the grammar is mounted once at the
// root and serves the bare, the OPDS and the web prefixes alike.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, store library.Store, st *stats.Stats) {
	h := &handler{
		cfg:    cfg,
		svc:    NewService(cfg, store),
		store:  store,
		covers: covers.NewService(cfg),
		stats:  st,
	}

	e.GET("/", h.root)
	e.GET("/newdate/:page", h.newByDate)
	e.GET("/newtitle/:page", h.newByTitle)
	e.GET("/authorsindex", h.authorsIndex)
	e.GET("/authorsindex/:prefix", h.authorsIndex)
	e.GET("/author-details/:name", h.authorDetails)
	e.GET("/author-series/:name", h.authorSeries)
	e.GET("/author-no-series/:name", h.authorNoSeries)
	e.GET("/author-alphabetic/:name", h.authorAlphabetic)
	e.GET("/author-by-date/:name", h.authorByDate)
	e.GET("/sequencesindex", h.sequencesIndex)
	e.GET("/sequencesindex/:prefix", h.sequencesIndex)
	e.GET("/sequence/:name", h.sequence)
	e.GET("/genres", h.genres)
	e.GET("/genres/:section", h.genres)
	e.GET("/genre/:id", h.genre)
	e.GET("/search", h.search)
	e.GET(OpenSearchPath, h.openSearch)
	e.GET("/cover/:id", h.cover)
	e.GET("/thumbnail/:id", h.thumbnail)

	// The icon route shares the :id position with downloads; the handler
	// rejects anything that is not *.ico.
	e.GET("/:id", h.favicon)
	e.GET("/:id/:filename", h.download)
}

// NormalizeMiddleware rewrites incoming paths into the canonical catalog
// grammar before routing: duplicate slashes collapse, escaped template
// braces decode, the OPDS and web prefixes are stripped (the web prefix
// flips the response to HTML), and unknown query keys are dropped. Meant
// for echo.Pre.
func NormalizeMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	rootPrefix := strings.Trim(cfg.RootPrefix, "/")
	webPrefix := strings.Trim(cfg.HttpPrefix, "/")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if len(req.RequestURI) > maxURLLength {
				return errcodes.MalformedRequest("request URL too long")
			}

			p := NormalizePath(req.URL.Path)
			if stripped, ok := stripPrefix(p, webPrefix); ok {
				c.Set(webModeKey, true)
				p = stripped
			} else if stripped, ok := stripPrefix(p, rootPrefix); ok {
				p = stripped
			}
			req.URL.Path = p
			req.URL.RawPath = ""
			filterQuery(req.URL)
			return next(c)
		}
	}
}

func stripPrefix(p, prefix string) (string, bool) {
	if prefix == "" {
		return p, false
	}
	full := "/" + prefix
	if p == full {
		return "/", true
	}
	if strings.HasPrefix(p, full+"/") {
		return p[len(full):], true
	}
	return p, false
}

// filterQuery drops every query key the catalog does not understand.
func filterQuery(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	filtered := url.Values{}
	for _, key := range []string{"pageNumber", "searchTerm", "searchType"} {
		if v, ok := q[key]; ok {
			filtered[key] = v
		}
	}
	u.RawQuery = filtered.Encode()
}
