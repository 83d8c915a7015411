package telegram

import (
	"fmt"
	"strings"
)

// BatchedAlert carries the per-symbol data rendered into a batched
// notification message.
type BatchedAlert struct {
	Symbol  string
	Price   float64
	PctDiff float64
	P16     float64
	P84     float64
	IsOwned bool
}

// deviationStatus describes where the deviation sits relative to its
// historical percentile band.
func deviationStatus(a BatchedAlert) string {
	switch {
	case a.PctDiff <= a.P16:
		return "Unusually low"
	case a.PctDiff >= a.P84:
		return "Unusually high"
	default:
		return "Alert"
	}
}

// FormatBatchedAlerts renders one HTML message covering every triggered
// symbol for a user. Owned positions are listed before watchlist-only
// entries.
func FormatBatchedAlerts(alerts []BatchedAlert) string {
	var positionAlerts, watchlistAlerts []BatchedAlert
	for _, a := range alerts {
		if a.IsOwned {
			positionAlerts = append(positionAlerts, a)
		} else {
			watchlistAlerts = append(watchlistAlerts, a)
		}
	}

	var b strings.Builder

	plural := ""
	if len(alerts) > 1 {
		plural = "s"
	}
	b.WriteString(fmt.Sprintf("📊 <b>Daily Stock Alerts (%d item%s need attention)</b>\n\n", len(alerts), plural))

	if len(positionAlerts) > 0 {
		b.WriteString(fmt.Sprintf("🔴 <b>YOUR POSITIONS (%d):</b>\n", len(positionAlerts)))
		for _, a := range positionAlerts {
			b.WriteString(fmt.Sprintf("• %s - %s (%+.1f%%)\n", strings.ToUpper(a.Symbol), deviationStatus(a), a.PctDiff))
		}
		b.WriteString("\n")
	}

	if len(watchlistAlerts) > 0 {
		b.WriteString(fmt.Sprintf("🟡 <b>WATCHLIST (%d):</b>\n", len(watchlistAlerts)))
		for _, a := range watchlistAlerts {
			b.WriteString(fmt.Sprintf("• %s - %s (%+.1f%%)\n", strings.ToUpper(a.Symbol), deviationStatus(a), a.PctDiff))
		}
		b.WriteString("\n")
	}

	b.WriteString("💡 <i>These stocks are outside their normal trading ranges.</i>")

	return b.String()
}
