package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/namanxajmera/stock-alerts/internal/analysis"
	"github.com/namanxajmera/stock-alerts/internal/api/service"
	"github.com/namanxajmera/stock-alerts/internal/repository"
	"github.com/namanxajmera/stock-alerts/pkg/logger"
)

// StockHandler handles HTTP requests for stock data and analytics.
type StockHandler struct {
	stockService service.StockService
	logger       *logger.Logger
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(stockService service.StockService, logger *logger.Logger) *StockHandler {
	return &StockHandler{stockService: stockService, logger: logger}
}

// RegisterRoutes registers the stock routes to the Echo group.
func (h *StockHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:symbol", h.GetStockData)
	g.GET("/:symbol/stats", h.GetTradingStats)
}

// GetStockData returns the annotated daily series for a symbol over the
// requested display period (query param "period", default 1y).
func (h *StockHandler) GetStockData(c echo.Context) error {
	symbol := c.Param("symbol")
	period := c.QueryParam("period")
	if period == "" {
		period = "1y"
	}

	data, err := h.stockService.GetStockData(c.Request().Context(), symbol, period)
	if err != nil {
		return h.writeError(c, symbol, err)
	}
	return c.JSON(http.StatusOK, data)
}

// GetTradingStats returns the derived zone and streak analytics for a
// symbol over the requested display period.
func (h *StockHandler) GetTradingStats(c echo.Context) error {
	symbol := c.Param("symbol")
	period := c.QueryParam("period")
	if period == "" {
		period = "1y"
	}

	stats, err := h.stockService.GetTradingStats(c.Request().Context(), symbol, period)
	if err != nil {
		return h.writeError(c, symbol, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *StockHandler) writeError(c echo.Context, symbol string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidSymbol), errors.Is(err, service.ErrInvalidPeriod):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, analysis.ErrInsufficientData):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Not enough price history to compute metrics"})
	case errors.Is(err, repository.ErrSymbolNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Symbol not found"})
	case errors.Is(err, repository.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "Data provider rate limit reached, try again later"})
	default:
		h.logger.ErrorContext(c.Request().Context(), "Failed to serve stock request",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}
}
