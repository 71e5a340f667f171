package server

import "github.com/haukened/localdns/internal/dns/common/log"

// Notifier surfaces non-fatal problems to the user, such as a records file
// that failed to reload.
type Notifier interface {
	Notify(summary, body string)
}

// LogNotifier reports notifications as warnings.
type LogNotifier struct {
	logger log.Logger
}

// NewLogNotifier returns a Notifier that writes to logger.
func NewLogNotifier(logger log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(summary, body string) {
	n.logger.Warn(map[string]any{"body": body}, summary)
}
