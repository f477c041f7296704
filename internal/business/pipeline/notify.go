package pipeline

import (
	"log/slog"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// Notifier fans pipeline outcomes out to configured channels. Console output
// is always on; Slack and email dispatch are configuration-visible stubs
// that log what would be sent without sending it.
type Notifier struct {
	slackWebhook string
	email        string
	logger       *slog.Logger
}

func NewNotifier(slackWebhook, email string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{slackWebhook: slackWebhook, email: email, logger: logger}
}

// Notify dispatches one event to every channel.
func (n *Notifier) Notify(event model.UpdateEvent) {
	attrs := []any{
		slog.String("event", string(event.Type)),
		slog.String("pipeline", event.PipelineID),
	}
	if event.Provider != "" {
		attrs = append(attrs, slog.String("provider", string(event.Provider)))
	}

	switch event.Type {
	case model.EventPipelineFailed, model.EventQuotaExceeded:
		n.logger.Error("pipeline notification", attrs...)
	case model.EventQuotaWarning:
		n.logger.Warn("pipeline notification", attrs...)
	default:
		n.logger.Info("pipeline notification", attrs...)
	}

	if n.slackWebhook != "" {
		n.logger.Debug("slack dispatch not implemented, notification logged only",
			slog.String("event", string(event.Type)))
	}
	if n.email != "" {
		n.logger.Debug("email dispatch not implemented, notification logged only",
			slog.String("event", string(event.Type)))
	}
}
