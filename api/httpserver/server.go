// Package httpserver is the REST gateway. It parses requests once at the
// boundary, hands the engine typed values (the engine applies the admission
// rules), and translates typed outcomes back to status codes. Wire formats live here, never in the
// core.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/SparshBisen/Crypto/domain/orderbook"
	"github.com/SparshBisen/Crypto/service"
)

type Server struct {
	engine *service.MatchingEngine
	log    *logrus.Logger
}

func NewServer(engine *service.MatchingEngine, log *logrus.Logger) *Server {
	return &Server{engine: engine, log: log}
}

// Register mounts the REST routes on an echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", s.handleHealth)
	e.POST("/orders", s.handleSubmit)
	e.DELETE("/orders/:id", s.handleCancel)
	e.GET("/market-data/:symbol", s.handleMarketData)
	e.GET("/bbo/:symbol", s.handleBbo)
}

// -------------------- DTOs --------------------

type orderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"order_type"`
	Quantity string `json:"quantity"`
	Price    string `json:"price,omitempty"`
}

type orderResponse struct {
	OrderID           string            `json:"order_id"`
	Status            string            `json:"status"`
	FilledQuantity    string            `json:"filled_quantity"`
	RemainingQuantity string            `json:"remaining_quantity"`
	Reason            string            `json:"reason,omitempty"`
	Trades            []orderbook.Trade `json:"trades"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// -------------------- Handlers --------------------

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSubmit(c echo.Context) error {
	var dto orderRequest
	if err := c.Bind(&dto); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	req, err := toOrderRequest(dto)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	result, err := s.engine.Submit(req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrder) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		s.log.WithError(err).Error("submit failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}

	trades := result.Trades
	if trades == nil {
		trades = []orderbook.Trade{}
	}
	return c.JSON(http.StatusOK, orderResponse{
		OrderID:           result.OrderID,
		Status:            result.Status.String(),
		FilledQuantity:    result.Filled.String(),
		RemainingQuantity: result.Remaining.String(),
		Reason:            result.Reason,
		Trades:            trades,
	})
}

func (s *Server) handleCancel(c echo.Context) error {
	orderID := c.Param("id")
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "symbol query parameter required"})
	}

	switch s.engine.Cancel(orderID, symbol) {
	case service.Cancelled:
		return c.JSON(http.StatusOK, map[string]string{"message": "order cancelled"})
	case service.AlreadyTerminal:
		return c.JSON(http.StatusConflict, errorResponse{Error: "order already terminal"})
	default:
		return c.JSON(http.StatusNotFound, errorResponse{Error: "order not found"})
	}
}

func (s *Server) handleMarketData(c echo.Context) error {
	depth := 0
	if d := c.QueryParam("depth"); d != "" {
		if err := echo.QueryParamsBinder(c).Int("depth", &depth).BindError(); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid depth"})
		}
	}

	snap, err := s.engine.Snapshot(c.Param("symbol"), depth)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "symbol not found"})
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleBbo(c echo.Context) error {
	bbo, err := s.engine.Bbo(c.Param("symbol"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "symbol not found"})
	}
	return c.JSON(http.StatusOK, bbo)
}

// -------------------- Converters --------------------

func toOrderRequest(dto orderRequest) (service.OrderRequest, error) {
	var req service.OrderRequest

	switch dto.Side {
	case "buy":
		req.Side = orderbook.Buy
	case "sell":
		req.Side = orderbook.Sell
	default:
		return req, errors.New("side must be buy or sell")
	}

	switch dto.Type {
	case "limit":
		req.Type = orderbook.Limit
	case "market":
		req.Type = orderbook.Market
	case "ioc":
		req.Type = orderbook.IOC
	case "fok":
		req.Type = orderbook.FOK
	default:
		return req, errors.New("order_type must be one of limit, market, ioc, fok")
	}

	qty, err := decimal.NewFromString(dto.Quantity)
	if err != nil {
		return req, errors.New("quantity must be a decimal string")
	}
	req.Qty = qty

	if dto.Price != "" {
		price, err := decimal.NewFromString(dto.Price)
		if err != nil {
			return req, errors.New("price must be a decimal string")
		}
		req.Price = price
	}

	req.Symbol = dto.Symbol
	return req, nil
}
