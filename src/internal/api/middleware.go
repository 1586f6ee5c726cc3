package api

import (
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/routervm/uplinkctl/src/internal/log"
)

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// JSONContentType rejects request bodies that are not declared as JSON.
// A body without a Content-Type is accepted so curl one-liners work.
func JSONContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					WriteInvalidRequest(w, "Content-Type must be application/json")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Logger logs one line per request with the peer, status and duration.
// Failed requests are logged as warnings.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		logf := log.Infof
		if rec.status >= http.StatusBadRequest {
			logf = log.Warnf
		}
		logf("[API] %s %s %s - %d (%v)", clientIP(r), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// Recovery turns a handler panic into a 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Errorf("[API] Panic in %s %s: %v", r.Method, r.URL.Path, v)
				WriteInternalError(w, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ManagementOnly admits loopback peers and peers inside the management
// subnet. Segment subnets are private too, so a private-address check would
// let a segment host rewrite its own policy.
func ManagementOnly(subnet *net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer := clientIP(r)
			ip := net.ParseIP(peer)
			switch {
			case ip == nil:
				log.Warnf("[API] Rejected request with unparsable peer address %q", peer)
				WriteForbidden(w, "Access denied")
			case ip.IsLoopback(), subnet != nil && subnet.Contains(ip):
				next.ServeHTTP(w, r)
			default:
				log.Warnf("[API] Rejected request from %s", peer)
				WriteForbidden(w, "Access denied: only the management network is allowed")
			}
		})
	}
}

// clientIP returns the TCP peer address. Forwarding headers are ignored:
// nothing proxies the server and a client could use them to claim a
// management address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
