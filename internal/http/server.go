package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"travelshare/internal/core"
	applog "travelshare/internal/log"
	"travelshare/internal/middleware/ratelimit"
	"travelshare/internal/middleware/security"
	"travelshare/internal/middleware/trace"
	"travelshare/internal/services"
)

// Service is the part of the expense service the API calls.
type Service interface {
	CreateExpense(ctx context.Context, in services.CreateExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, in services.CreateExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ExpenseView(ctx context.Context, id, currentUserID int64) (services.ExpenseView, error)
	ExpenseViews(ctx context.Context, tripID, currentUserID int64) ([]services.ExpenseView, error)
	ComputeTripReport(ctx context.Context, tripID int64) (core.ReportSummary, error)
	ExportReport(ctx context.Context, tripID int64) (string, error)
	AuthorizePayment(ctx context.Context, in services.PaymentInput) (core.PaymentResult, error)
	SettleShare(ctx context.Context, expenseID, userID int64, card services.CardDetails) (core.PaymentResult, error)
	Users() []core.User
}

var _ Service = (*services.ExpenseService)(nil)

// Options configures a Server.
type Options struct {
	Addr string
	// PaymentRateLimit is the number of payment requests allowed per client
	// per minute.
	PaymentRateLimit int
	Logger           *applog.Logger
}

type Server struct {
	http.Server
	svc      Service
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

func NewServer(opts Options, svc Service) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector(logger)
	s := &Server{
		svc:      svc,
		logger:   logger,
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.PaymentRateLimit,
		}),
	}

	mux := http.NewServeMux()
	limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /users", s.handleListUsers)

	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)
	mux.Handle("POST /expenses/{id}/shares/{userId}/pay", limited(http.HandlerFunc(s.handlePayShare)))

	mux.HandleFunc("GET /trips/{id}/report", s.handleTripReport)
	mux.HandleFunc("POST /trips/{id}/report/export", s.handleExportReport)

	mux.Handle("POST /payments", limited(http.HandlerFunc(s.handleAuthorizePayment)))

	// Outermost first: logger in context, request id, id on the logger,
	// scan rejection, headers.
	var h http.Handler = mux
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type healthResponse struct {
	Status         string `json:"status"`
	TotalRequests  int64  `json:"totalRequests"`
	ServerErrors   int64  `json:"serverErrors"`
	RateLimitHits  int64  `json:"rateLimitHits"`
	RejectedScans  int64  `json:"rejectedScans"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	m := s.tracer.GetMetrics()
	NewJSONResponse().Body(healthResponse{
		Status:         "ok",
		TotalRequests:  m.TotalRequests,
		ServerErrors:   m.ServerErrors,
		RateLimitHits:  s.limiter.GetMetrics().TotalHits,
		RejectedScans:  s.detector.GetMetrics().RejectedRequests,
	}).Write(w)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(newUserDTOs(s.svc.Users())).Write(w)
}
