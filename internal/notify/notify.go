// Package notify sends desktop notifications.
package notify

import (
	"github.com/gen2brain/beeep"

	"github.com/jrdx0/claude-applet/internal/logger"
)

// Send shows a desktop notification. Best effort: an environment without a
// notification daemon only logs the failure.
func Send(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}
