package audit

import (
	"net"
	"net/http"
	"strings"

	ua "github.com/mssola/useragent"
)

// Origin captures where a state-changing request came from. It is attached to
// audit entries and scrubbed together with the actor on anonymization.
type Origin struct {
	IP        string
	UserAgent string
}

// OriginFromRequest extracts client origin metadata from the HTTP request.
// The user agent is summarized to a "Browser on OS" form rather than stored
// raw, which keeps entries readable and bounds their size.
func OriginFromRequest(r *http.Request) Origin {
	if r == nil {
		return Origin{}
	}

	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// First hop is the client when behind a trusted proxy.
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}

	return Origin{
		IP:        ip,
		UserAgent: SummarizeUserAgent(r.UserAgent()),
	}
}

// SummarizeUserAgent reduces a raw User-Agent string to "Browser on OS".
func SummarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	parsed := ua.New(raw)
	browser, _ := parsed.Browser()
	os := parsed.OSInfo().Name

	browser = strings.TrimSpace(browser)
	os = strings.TrimSpace(os)
	switch {
	case browser == "" && os == "":
		return "Unknown Client"
	case os == "":
		return browser
	case browser == "":
		return os
	default:
		return browser + " on " + os
	}
}
