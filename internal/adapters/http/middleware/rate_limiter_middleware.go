// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"traffic-control/internal/adapters/metrics"
	"traffic-control/internal/core/domain"
	"traffic-control/internal/core/ports"
)

const rateLimitExceededMessage = "you have reached the maximum number of requests or actions allowed within a certain time frame"

// NewRateLimiterMiddleware devolve o middleware de admissão. O identificador é
// sempre o peer da conexão; cabeçalhos de proxy não são confiáveis e entram
// apenas como sinal para o detector de anomalias.
func NewRateLimiterMiddleware(limiter ports.RateLimiter, collector *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			decision := limiter.Allow(r.Context(), domain.Request{
				ClientIP: connectingIP(r),
				Path:     r.URL.Path,
				Method:   r.Method,
				Headers:  headerMap(r.Header),
				At:       time.Now(),
			})

			if collector != nil {
				collector.ObserveDecision(decision)
			}

			if !decision.Allowed {
				writeTooManyRequests(w, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// connectingIP extrai o host do peer TCP; cabeçalhos de proxy nunca definem
// a identidade.
func connectingIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return host
}

func headerMap(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	return headers
}

func writeTooManyRequests(w http.ResponseWriter, decision domain.Decision) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if decision.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if !decision.WindowEnds.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.WindowEnds.Unix(), 10))
	}
	if decision.RetryAfter > 0 {
		seconds := int64(decision.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(rateLimitExceededMessage))
}
