package services

import (
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"auction-system/utils"
)

// Publisher mirrors room events to an out-of-band per-user push channel so
// users without an open socket still get notified.
type Publisher interface {
	Notify(channel string, message map[string]any)
}

// UserChannel is the push channel for one user.
func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// PubNubNotifier publishes through PubNub behind a circuit breaker.
// Publishing is fire-and-forget: a push failure never fails the operation
// that triggered it.
type PubNubNotifier struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
	logger  *slog.Logger
}

func NewPubNubNotifier(pn *pubnub.PubNub, logger *slog.Logger) *PubNubNotifier {
	return &PubNubNotifier{
		pn:      pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
		logger:  logger,
	}
}

func (n *PubNubNotifier) Notify(channel string, message map[string]any) {
	if n.pn == nil {
		return
	}

	go func() {
		err := n.breaker.Execute(func() error {
			_, _, err := n.pn.Publish().
				Channel(channel).
				Message(message).
				Execute()
			return err
		})
		if err != nil {
			n.logger.Error("pubnub publish failed", "channel", channel, "error", err)
		}
	}()
}

// NoopPublisher discards notifications. Used in tests and when PubNub keys
// are not configured.
type NoopPublisher struct{}

func (NoopPublisher) Notify(string, map[string]any) {}
