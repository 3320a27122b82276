package main

import (
	"context"
	"log/slog"

	goAccount "github.com/MrEthical07/goAccount"
)

// notifier delivers one-time tokens to account owners.
type notifier interface {
	Deliver(ctx context.Context, purpose goAccount.OneTimePurpose, recipient, token string) error
}

// logNotifier writes tokens to the debug log. It stands in for a mail
// integration in local deployments.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Deliver(ctx context.Context, purpose goAccount.OneTimePurpose, recipient, token string) error {
	n.logger.DebugContext(ctx, "one-time token issued", "purpose", string(purpose), "recipient", recipient, "token", token)
	return nil
}
