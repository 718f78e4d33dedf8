package portal

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolinfo/internal/auth"
)

// Options configures the console guard.
type Options struct {
	CookieName        string
	CookieDomain      string
	Secure            bool
	LoginPath         string
	HomePath          string
	ProtectedPrefixes []string
	SigningKey        string
	Issuer            string
	Now               func() time.Time
	Log               *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = auth.CookieName
	}
	if o.LoginPath == "" {
		o.LoginPath = "/login"
	}
	if o.HomePath == "" {
		o.HomePath = "/"
	}
	if len(o.ProtectedPrefixes) == 0 {
		o.ProtectedPrefixes = []string{"/dashboard", "/dashboardxzx"}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// Decision is the outcome of routing one request.
type Decision struct {
	Redirect    string
	ClearCookie bool
	Claims      *auth.Claims
}

// Pass reports whether the request continues to its handler.
func (d Decision) Pass() bool { return d.Redirect == "" }

// Decide routes path for the given raw token ("" when no cookie is present).
func Decide(path, token string, opts Options) Decision {
	opts = opts.withDefaults()
	protected := false
	for _, p := range opts.ProtectedPrefixes {
		if under(path, p) {
			protected = true
			break
		}
	}

	if token == "" {
		if protected {
			return Decision{Redirect: opts.LoginPath}
		}
		return Decision{}
	}

	claims, err := auth.Decode(token, opts.SigningKey, opts.Issuer, opts.Now())
	if err != nil {
		opts.Log.Debug("session rejected", zap.String("path", path), zap.Error(err))
		d := Decision{ClearCookie: true}
		if protected {
			d.Redirect = opts.LoginPath
		}
		return d
	}

	base, hasDashboard := DashboardFor(claims.Role)
	switch {
	case under(path, opts.LoginPath):
		if hasDashboard {
			return Decision{Redirect: base}
		}
		return Decision{Redirect: opts.HomePath}
	case protected && !hasDashboard:
		return Decision{Redirect: opts.HomePath}
	case protected && !under(path, base):
		return Decision{Redirect: base}
	}
	return Decision{Claims: &claims}
}

// Guard applies Decide to every request it wraps.
func Guard(opts Options) gin.HandlerFunc {
	opts = opts.withDefaults()
	return func(c *gin.Context) {
		token, _ := c.Cookie(opts.CookieName)
		d := Decide(c.Request.URL.Path, token, opts)
		if d.ClearCookie {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(opts.CookieName, "", -1, "/", opts.CookieDomain, opts.Secure, true)
		}
		if !d.Pass() {
			c.Redirect(http.StatusTemporaryRedirect, d.Redirect)
			c.Abort()
			return
		}
		if d.Claims != nil {
			auth.SetClaims(c, *d.Claims)
		}
		c.Next()
	}
}
