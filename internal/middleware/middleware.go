package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/pkg/logger_i"
	"golang.org/x/time/rate"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	code         string
	errorMessage string
}

type Middleware struct {
	authToken    string
	noAuthBypass bool
	limiter      *IPRateLimiter
}

func New(settings config.ServerSettings) *Middleware {
	m := &Middleware{
		authToken:    settings.AuthToken,
		noAuthBypass: settings.NoAuthBypass,
	}
	if settings.RateLimit > 0 {
		m.limiter = NewIPRateLimiter(rate.Limit(settings.RateLimit), max(1, settings.RateBurst))
	}
	return m
}

// Protected runs trace injection, rate limiting and bearer auth before next.
func (m *Middleware) Protected(next http.HandlerFunc) http.HandlerFunc {
	return m.wrap(next, true)
}

// Public only injects the trace id and records metrics.
func (m *Middleware) Public(next http.HandlerFunc) http.HandlerFunc {
	return m.wrap(next, false)
}

func (m *Middleware) ProtectedHandler(next http.Handler) http.Handler {
	return m.wrap(next.ServeHTTP, true)
}

func (m *Middleware) wrap(next http.HandlerFunc, requireAuth bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		re := m.processRequest(requestResponseStruct{req: r, writer: rec}, requireAuth)

		if !handleBadRequest(re) {
			metrics.HttpRequestsTotal.WithLabelValues(utils.RoutePattern(r), strconv.Itoa(rec.Status)).Inc()
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(utils.RoutePattern(re.req), strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func (m *Middleware) processRequest(re requestResponseStruct, requireAuth bool) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "path", re.req.URL.Path)
	re = injectTrace(re)
	if !requireAuth || re.badRequest.isBadRequest {
		return re
	}
	re = m.rateLimiter(re)
	if re.badRequest.isBadRequest {
		return re //stop here if rate limit fails
	}
	return m.authenticate(re)
}
