package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/metrics"
	"kasirinaja/register/internal/payment"
	"kasirinaja/register/internal/register"
)

const maxJSONBody = 1 << 20

var registerRoles = []string{"cashier", "manager", "admin"}

type API struct {
	register      *register.Register
	auth          *AuthManager
	allowedOrigin string
	pinLimiter    *attemptLimiter
	metrics       *metrics.Register
	gatherer      prometheus.Gatherer
	log           zerolog.Logger
}

type Options struct {
	Register      *register.Register
	Auth          *AuthManager
	AllowedOrigin string
	Metrics       *metrics.Register
	Gatherer      prometheus.Gatherer
	Logger        zerolog.Logger
}

func New(opts Options) *API {
	return &API{
		register:      opts.Register,
		auth:          opts.Auth,
		allowedOrigin: opts.AllowedOrigin,
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		metrics:       opts.Metrics,
		gatherer:      opts.Gatherer,
		log:           opts.Logger,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, a.securityHeaders, a.observe)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { writeMethodNotAllowed(w) })
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})

	r.Get("/healthz", a.handleHealth)
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/register", func(r chi.Router) {
		r.Use(a.requireAuth(registerRoles...))

		r.Get("/cart", a.handleCart)
		r.Delete("/cart", a.handleAbandon)
		r.Patch("/cart/lines/{id}", a.handleSetQuantity)
		r.Delete("/cart/lines/{id}", a.handleRemoveLine)
		r.Post("/scan", a.handleScan)

		r.Get("/weighing", a.handleWeighing)
		r.Post("/weighing/read", a.handleReadWeight)
		r.Post("/weighing/confirm", a.handleConfirmWeighing)
		r.Post("/weighing/cancel", a.handleCancelWeighing)

		r.Post("/checkout", a.handleCheckout)
		r.Get("/receipts/last", a.handleLastReceipt)
	})

	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}

			token := strings.TrimSpace(authorization[len("Bearer "):])
			actor, err := a.auth.ParseToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(register.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.register.Cart(r.Context()))
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	result, err := a.register.Scan(r.Context(), req.Barcode)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if result.WeighingRequired {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

func (a *API) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.QuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	view, err := a.register.SetQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.register.Remove(r.Context(), chi.URLParam(r, "id")))
}

func (a *API) handleAbandon(w http.ResponseWriter, r *http.Request) {
	if !a.pinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager PIN attempts, try again later"))
		return
	}

	var req domain.AbandonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager PIN"))
		return
	}

	removed := a.register.Abandon(r.Context(), strings.TrimSpace(req.Reason))
	writeJSON(w, http.StatusOK, map[string]any{
		"removed_lines": removed,
		"cart":          a.register.Cart(r.Context()),
	})
}

func (a *API) handleWeighing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.register.Weighing(r.Context()))
}

func (a *API) handleReadWeight(w http.ResponseWriter, r *http.Request) {
	view, err := a.register.ReadWeight(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleConfirmWeighing(w http.ResponseWriter, r *http.Request) {
	line, view, err := a.register.ConfirmWeighing(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"line": line,
		"cart": view,
	})
}

func (a *API) handleCancelWeighing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.register.CancelWeighing(r.Context()))
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	tendered, err := payment.ParseTendered(req.Tendered)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	rcpt, err := a.register.Checkout(r.Context(), tendered)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.CheckoutResponse{
		Receipt: rcpt,
		Preview: a.register.Preview(rcpt),
	})
}

func (a *API) handleLastReceipt(w http.ResponseWriter, r *http.Request) {
	rcpt, err := a.register.LastReceipt(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(a.register.Preview(rcpt)))
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method != http.MethodGet && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(startedAt)
		a.metrics.ObserveRequest(r.Method, route, strconv.Itoa(status), elapsed)
		a.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("http request")
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrStateViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Msg("register operation failed")
	}
	writeError(w, status, err)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
		return
	}
	writeError(w, http.StatusBadRequest, errors.New("invalid json body"))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry the underlying error text.
	msg := err.Error()
	if status >= 500 && status != http.StatusServiceUnavailable {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
