package http

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/namanxajmera/stock-alerts/internal/api/dto"
	"github.com/namanxajmera/stock-alerts/internal/ratelimit"
	"github.com/namanxajmera/stock-alerts/pkg/common"
	"github.com/namanxajmera/stock-alerts/pkg/logger"
)

// StatusHandler exposes operational state: API quota consumption and the
// outcome of the most recent checker run.
type StatusHandler struct {
	limiter     *ratelimit.Limiter
	redisClient *goredis.Client
	logger      *logger.Logger
}

// NewStatusHandler creates a new StatusHandler. redisClient may be nil;
// the last-run section is omitted when it is.
func NewStatusHandler(limiter *ratelimit.Limiter, redisClient *goredis.Client, logger *logger.Logger) *StatusHandler {
	return &StatusHandler{limiter: limiter, redisClient: redisClient, logger: logger}
}

// RegisterRoutes registers the status routes to the Echo group.
func (h *StatusHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/status", h.GetStatus)
}

// GetStatus returns API quota usage and the last checker run summary.
func (h *StatusHandler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	usage, err := h.limiter.Usage(ctx, common.APINameTiingo)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to read API usage", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to read API usage"})
	}

	resp := dto.StatusResponse{APIUsage: usage}

	if h.redisClient != nil {
		raw, err := h.redisClient.Get(ctx, common.RedisKeyCheckerLastRun).Result()
		switch {
		case err == goredis.Nil:
			// no run recorded yet
		case err != nil:
			h.logger.WarnContext(ctx, "Failed to read last run summary", logger.ErrorField(err))
		default:
			var summary map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &summary); err == nil {
				resp.LastRun = summary
			}
		}
	}

	return c.JSON(http.StatusOK, resp)
}
