package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"pushcast/pkg/requestcontext"
)

// ClientMetadata extracts the client IP, the raw User-Agent and the parsed browser
// family and stores them on the request context. Subscribing browsers identify
// themselves here; the registry uses the family as a metrics label.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), agent)
		ctx = requestcontext.WithBrowser(ctx, BrowserFamily(agent))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BrowserFamily returns the browser name for a User-Agent string, "bot" for
// crawlers, and "" when the header is empty.
func BrowserFamily(agent string) string {
	if strings.TrimSpace(agent) == "" {
		return ""
	}
	ua := useragent.New(agent)
	if ua.Bot() {
		return "bot"
	}
	name, _ := ua.Browser()
	return name
}

// ClientIPFromRequest extracts the client IP, honoring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
