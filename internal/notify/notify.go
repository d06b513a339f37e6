// Package notify abstracts the informational toast surface shown to the
// producer. Presentation is owned by the UI; this layer only forwards the
// message text.
package notify

import "log/slog"

// BackstageFanMessage is the fixed message shown when a fan is moved into
// the backstage holding area.
const BackstageFanMessage = "A new fan has been moved to backstage"

// Notifier receives informational messages destined for the operator UI.
type Notifier interface {
	Info(message string)
}

// LogNotifier writes notifications to the logger. It is the default sink when
// no UI bridge is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Info(message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "message", message)
}
