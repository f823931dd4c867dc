// Package api is the request boundary: it decodes client intents into
// typed engine commands and serializes results. All matching semantics
// live in the engine; handlers only translate and report.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"matchbook/internal/engine"
	"matchbook/internal/orderbook"
	"matchbook/internal/store"
)

type Server struct {
	engine   *engine.Engine
	ledger   *store.Store // optional order intake audit
	hub      *Hub
	limiter  *RateLimiter // nil unless rate limiting is enabled
	upgrader websocket.Upgrader
	log      *zap.Logger

	corsOrigins []string // Allowed CORS origins (empty = allow all)
}

func NewServer(eng *engine.Engine, ledger *store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine: eng,
		ledger: ledger,
		hub:    NewHub(),
		log:    log,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// SetCORSOrigins restricts allowed origins. Empty = allow all (dev).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

// SetRateLimit enables per-IP rate limiting at n requests per minute.
func (s *Server) SetRateLimit(n int) {
	if n > 0 {
		s.limiter = NewRateLimiter(n, 1*time.Minute)
	}
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	// Empty origin header = same-origin request, always allow
	if origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", s.createOrder)
		r.Post("/orders/oco", s.createOCO)
		r.Put("/orders/{id}", s.modifyOrder)
		r.Delete("/orders/{id}", s.cancelOrder)
		r.Get("/orders/{id}", s.getOrder)
		r.Get("/book", s.getBook)
		r.Get("/trades", s.getTrades)
	})

	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.healthz)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type OrderRequest struct {
	Side          string `json:"side"`          // "buy" or "sell"
	Type          string `json:"type"`          // "limit", "market", "stop_limit", "stop_market"
	Price         int64  `json:"price"`         // in cents, required for limit variants
	TriggerPrice  int64  `json:"trigger_price"` // required for stop variants
	Quantity      int64  `json:"quantity"`
	ClientOrderID string `json:"client_order_id"`
}

type OCORequest struct {
	Limit OrderRequest `json:"limit"`
	Stop  OrderRequest `json:"stop"`
}

type ModifyRequest struct {
	Price    *int64 `json:"price"`
	Quantity *int64 `json:"quantity"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	side, ok := parseSide(req.Side)
	if !ok {
		http.Error(w, "side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}

	var res engine.Result
	var err error
	switch req.Type {
	case "limit":
		res, err = s.engine.SubmitLimit(side, req.Price, req.Quantity, req.ClientOrderID)
	case "market":
		res, err = s.engine.SubmitMarket(side, req.Quantity)
	case "stop_limit":
		res, err = s.engine.SubmitStopLimit(side, req.TriggerPrice, req.Price, req.Quantity, req.ClientOrderID)
	case "stop_market":
		res, err = s.engine.SubmitStopMarket(side, req.TriggerPrice, req.Quantity, req.ClientOrderID)
	default:
		http.Error(w, "type must be limit, market, stop_limit or stop_market", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	s.auditOrder(res.OrderID)
	s.afterMutation(res.Trades)
	writeJSON(w, res)
}

func (s *Server) createOCO(w http.ResponseWriter, r *http.Request) {
	var req OCORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	limitSide, ok := parseSide(req.Limit.Side)
	if !ok {
		http.Error(w, "limit leg side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}
	stopSide, ok := parseSide(req.Stop.Side)
	if !ok {
		http.Error(w, "stop leg side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}
	stopType := orderbook.StopMarket
	if req.Stop.Type == "stop_limit" {
		stopType = orderbook.StopLimit
	} else if req.Stop.Type != "stop_market" {
		http.Error(w, "stop leg type must be stop_limit or stop_market", http.StatusBadRequest)
		return
	}

	res, err := s.engine.SubmitOCO(
		engine.LimitSpec{
			Side:          limitSide,
			Price:         req.Limit.Price,
			Quantity:      req.Limit.Quantity,
			ClientOrderID: req.Limit.ClientOrderID,
		},
		engine.StopSpec{
			Side:          stopSide,
			Type:          stopType,
			TriggerPrice:  req.Stop.TriggerPrice,
			Price:         req.Stop.Price,
			Quantity:      req.Stop.Quantity,
			ClientOrderID: req.Stop.ClientOrderID,
		},
	)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	s.auditOrder(res.LimitOrderID)
	s.auditOrder(res.StopOrderID)
	s.afterMutation(res.Trades)
	writeJSON(w, res)
}

func (s *Server) modifyOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req ModifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.engine.Modify(orderID, req.Price, req.Quantity)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	s.afterMutation(res.Trades)
	writeJSON(w, res)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	res, err := s.engine.Cancel(orderID)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	s.afterMutation(nil)
	writeJSON(w, res)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, exists := s.engine.GetOrder(orderID)
	if !exists {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, order)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Snapshot())
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, s.engine.RecentTrades(limit))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "symbol": s.engine.Symbol()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.Register(client)

	// Send initial book state
	data, _ := json.Marshal(map[string]interface{}{
		"type": "book",
		"book": s.engine.Snapshot(),
	})
	client.send <- data

	go client.WritePump()
	go client.ReadPump()
}

// afterMutation pushes the trades and the fresh book state to every
// connected stream client.
func (s *Server) afterMutation(trades []orderbook.Trade) {
	for _, trade := range trades {
		s.hub.Broadcast(map[string]interface{}{
			"type":  "trade",
			"trade": trade,
		})
	}
	s.hub.Broadcast(map[string]interface{}{
		"type": "book",
		"book": s.engine.Snapshot(),
	})
}

// auditOrder records accepted order intake in the ledger.
func (s *Server) auditOrder(orderID string) {
	if s.ledger == nil {
		return
	}
	order, exists := s.engine.GetOrder(orderID)
	if !exists {
		return
	}
	if err := s.ledger.RecordOrder(s.engine.Symbol(), order); err != nil {
		s.log.Warn("failed to record order intake",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orderbook.ErrInvalidOrder):
		status = http.StatusBadRequest
	case errors.Is(err, orderbook.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orderbook.ErrAlreadyTerminal):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func parseSide(v string) (orderbook.Side, bool) {
	switch v {
	case "buy":
		return orderbook.Buy, true
	case "sell":
		return orderbook.Sell, true
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Shutdown stops internal goroutines (rate limiter, hub).
func (s *Server) Shutdown() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.hub.Stop()
}
