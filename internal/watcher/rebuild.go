package watcher

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

// RebuildRequest is the message body on the rebuild topic.
type RebuildRequest struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// RebuildHandler returns a kafka.MessageHandler that runs trigger for every
// rebuild request. Undecodable messages are returned as errors and stay
// uncommitted; failed rebuilds are logged and the message is committed.
func RebuildHandler(trigger Trigger) kafka.MessageHandler {
	logger := slog.Default().With("component", "rebuild-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[RebuildRequest](value)
		if err != nil {
			return err
		}
		reason := req.Reason
		if reason == "" {
			reason = "kafka"
		}
		logger.Info("rebuild requested", "reason", reason, "requested_by", req.RequestedBy)
		if err := trigger(ctx, reason); err != nil {
			logger.Error("requested rebuild failed", "reason", reason, "error", err)
		}
		return nil
	}
}
