package server

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sessionName  = "admin_session"
	bearerPrefix = "Bearer "
)

func (s *Server) setupMiddleware() {
	e := s.echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.log.Info()
			if v.Status >= 500 {
				event = s.log.Error()
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", redactToken(v.URI)).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("Request")
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/metrics"
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:",
		HSTSMaxAge:            31536000,
	}))

	e.Use(session.Middleware(s.newSessionStore()))
	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case path == "/feed.xml":
			c.Response().Header().Set("Cache-Control", "public, max-age=900")
		case strings.HasPrefix(path, "/blog"):
			c.Response().Header().Set("Cache-Control", "public, max-age=300")
		default:
			// approval links, admin and cron responses are single-use or private
			c.Response().Header().Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

func (s *Server) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(s.cfg.Server.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.Server.CookieSecure,
	}
	return store
}

func csrfMiddleware(secure bool) echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/admin",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   secure,
		CookieHTTPOnly: true,
	})
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

// cronAuth requires "Authorization: Bearer <secret>". An empty secret locks the endpoints.
func cronAuth(secret string) echo.MiddlewareFunc {
	expected := []byte(bearerPrefix + secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := []byte(c.Request().Header.Get(echo.HeaderAuthorization))
			if secret == "" || subtle.ConstantTimeCompare(provided, expected) != 1 {
				return jsonError(c, http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}

// isAdmin checks if the current session is authenticated
func isAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func setAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isAdmin(c) {
			return jsonError(c, http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

func (s *Server) requireAdminPage(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isAdmin(c) {
			return c.Redirect(http.StatusSeeOther, "/admin/login?next="+url.QueryEscape(c.Request().URL.Path))
		}
		return next(c)
	}
}

// redactToken keeps approval tokens out of the access log
func redactToken(uri string) string {
	const prefix = "/approval/"
	if !strings.HasPrefix(uri, prefix) {
		return uri
	}
	rest := uri[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i > 0 {
		return prefix + "***" + rest[i:]
	}
	return prefix + "***"
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
