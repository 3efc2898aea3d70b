// Package api implements the HTTP/SSE surface from spec.md §6: a health
// check, a root info endpoint, a synchronous analysis endpoint, and a
// streaming variant that attaches an SSE sink to the run's event
// dispatcher.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"tradingagents/internal/apperr"
	"tradingagents/internal/events"
	"tradingagents/internal/orchestrator"
)

// Runner is the orchestrator seam the API depends on, letting tests
// swap in a func-field fake without constructing a full Engine.
type Runner interface {
	Run(ctx context.Context, symbol, tradeDate string) (*orchestrator.Result, error)
	Dispatcher() *events.Dispatcher
}

// Server holds the HTTP dependencies and exposes the chi router.
type Server struct {
	Runner Runner
	Log    *zap.Logger
}

// Router builds the chi.Mux with the teacher's standard middleware
// stack (RequestID, RealIP, Logger, Recoverer, Compress) plus CORS and a
// per-IP rate limiter on the analysis endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/analyze/stream", s.handleAnalyzeStream)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "tradingagents",
		"endpoints": "/health, POST /analyze, GET /analyze/stream?ticker=SYMBOL",
	})
}

type analyzeRequest struct {
	Ticker    string `json:"ticker"`
	TradeDate string `json:"trade_date"`
}

// analyzeResponse is the wire shape from spec.md §6's POST /analyze row:
// {ticker, analysis_date, market_report, sentiment_report, news_report,
// fundamentals_report, final_trade_decision, processed_signal, error?}.
type analyzeResponse struct {
	Ticker             string `json:"ticker"`
	AnalysisDate       string `json:"analysis_date"`
	MarketReport       string `json:"market_report"`
	SentimentReport    string `json:"sentiment_report"`
	NewsReport         string `json:"news_report"`
	FundamentalsReport string `json:"fundamentals_report"`
	FinalTradeDecision string `json:"final_trade_decision"`
	ProcessedSignal    string `json:"processed_signal"`
	Error              string `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(apperr.ErrValidation, "decoding request body", err))
		return
	}
	if req.Ticker == "" {
		s.writeError(w, apperr.Wrap(apperr.ErrValidation, "ticker is required", nil))
		return
	}
	tradeDate := req.TradeDate
	if tradeDate == "" {
		tradeDate = time.Now().UTC().Format("2006-01-02")
	}

	result, err := s.Runner.Run(r.Context(), req.Ticker, tradeDate)
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status != http.StatusOK {
			s.writeError(w, err)
			return
		}
		// Application-level failure (spec.md §7): still a 200, with the
		// failure surfaced in the body's error field rather than the
		// HTTP status, alongside whatever partial state the run reached.
		writeJSON(w, http.StatusOK, analyzeResponse{
			Ticker:             req.Ticker,
			AnalysisDate:       tradeDate,
			FinalTradeDecision: "FINAL DECISION: HOLD",
			ProcessedSignal:    "HOLD",
			Error:              err.Error(),
		})
		return
	}

	bb := result.Blackboard
	writeJSON(w, http.StatusOK, analyzeResponse{
		Ticker:             result.Symbol,
		AnalysisDate:       result.TradeDate,
		MarketReport:       bb.MarketReport,
		SentimentReport:    bb.SentimentReport,
		NewsReport:         bb.NewsReport,
		FundamentalsReport: bb.FundamentalsReport,
		FinalTradeDecision: result.FinalTradeDecision,
		ProcessedSignal:    result.ProcessedSignal,
	})
}

// handleAnalyzeStream runs the same analysis with an SSE sink attached
// to the runner's shared dispatcher for the length of the request, so
// the caller sees every event emitted along the way. The run uses the
// request's context, so a client disconnect mid-run cancels it.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		s.writeError(w, apperr.Wrap(apperr.ErrValidation, "ticker query parameter is required", nil))
		return
	}
	tradeDate := r.URL.Query().Get("trade_date")
	if tradeDate == "" {
		tradeDate = time.Now().UTC().Format("2006-01-02")
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, errors.New("streaming unsupported by response writer"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := events.SinkFunc(func(ctx context.Context, ev events.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	dispatcher := s.Runner.Dispatcher()
	token := dispatcher.Attach(sink)
	defer dispatcher.Detach(token)

	_, err := s.Runner.Run(r.Context(), ticker, tradeDate)
	if err != nil && s.Log != nil {
		s.Log.Warn("streamed analysis ended with error", zap.Error(err))
		_ = sink.Send(r.Context(), events.Error(err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
