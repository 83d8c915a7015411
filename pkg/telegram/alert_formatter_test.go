package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBatchedAlerts(t *testing.T) {
	t.Run("owned positions come before watchlist entries", func(t *testing.T) {
		msg := FormatBatchedAlerts([]BatchedAlert{
			{Symbol: "msft", Price: 300, PctDiff: 12.34, P16: -5, P84: 8},
			{Symbol: "aapl", Price: 70, PctDiff: -29.9, P16: -5, P84: 8, IsOwned: true},
		})

		assert.Contains(t, msg, "Daily Stock Alerts (2 items need attention)")
		assert.Contains(t, msg, "🔴 <b>YOUR POSITIONS (1):</b>")
		assert.Contains(t, msg, "🟡 <b>WATCHLIST (1):</b>")
		assert.Contains(t, msg, "• AAPL - Unusually low (-29.9%)")
		assert.Contains(t, msg, "• MSFT - Unusually high (+12.3%)")
		assert.Less(t, strings.Index(msg, "AAPL"), strings.Index(msg, "MSFT"))
	})

	t.Run("single alert uses singular wording", func(t *testing.T) {
		msg := FormatBatchedAlerts([]BatchedAlert{
			{Symbol: "AAPL", PctDiff: -10, P16: -5, P84: 8},
		})
		assert.Contains(t, msg, "(1 item need attention)")
		assert.NotContains(t, msg, "YOUR POSITIONS")
	})

	t.Run("always carries the closing hint", func(t *testing.T) {
		msg := FormatBatchedAlerts(nil)
		assert.Contains(t, msg, "outside their normal trading ranges")
	})
}
