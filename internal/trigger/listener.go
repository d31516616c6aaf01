package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/messaging"
	"github.com/telhawk-systems/etl-central-square/internal/middleware"
)

// Broker is the messaging surface the listener needs.
type Broker interface {
	QueueSubscribe(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error)
	PublishMsg(ctx context.Context, msg *messaging.Message) error
}

// Listener receives invocation events from the broker. Instances share a
// queue group so every event runs on exactly one of them.
type Listener struct {
	broker  Broker
	handler *Handler
	logger  *logging.Logger
	sub     messaging.Subscription
}

func NewListener(broker Broker, handler *Handler, logger *logging.Logger) *Listener {
	if logger == nil {
		logger = logging.Default()
	}
	return &Listener{broker: broker, handler: handler, logger: logger}
}

// Start subscribes to the invocation subject.
func (l *Listener) Start() error {
	sub, err := l.broker.QueueSubscribe(messaging.SubjectInvoke, messaging.QueueConnector, l.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", messaging.SubjectInvoke, err)
	}
	l.sub = sub
	l.logger.Info("Listening for invocation events",
		"subject", messaging.SubjectInvoke,
		"queue", messaging.QueueConnector,
	)
	return nil
}

// Stop unsubscribes. Safe to call before Start.
func (l *Listener) Stop() error {
	if l.sub == nil {
		return nil
	}
	return l.sub.Unsubscribe()
}

func (l *Listener) handleMessage(ctx context.Context, msg *messaging.Message) error {
	requestID := msg.Metadata["X-Request-ID"]
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = middleware.WithRequestID(ctx, requestID)

	evt, err := ParseEvent(msg.Data)
	var result *Result
	if err != nil {
		result = &Result{Status: apperr.HTTPStatus(err), Message: apperr.Message(err)}
	} else {
		result, err = l.handler.Handle(ctx, evt)
	}

	if err != nil {
		l.logger.ErrorContext(ctx, "Invocation failed",
			"type", evt.Type,
			logging.WebhookID(evt.WebhookID),
			logging.Status(result.Status),
			logging.Error(err),
		)
	}

	if msg.Reply != "" {
		data, marshalErr := json.Marshal(result)
		if marshalErr == nil {
			reply := &messaging.Message{
				Subject:  msg.Reply,
				Data:     data,
				Metadata: map[string]string{"X-Request-ID": requestID},
			}
			if pubErr := l.broker.PublishMsg(ctx, reply); pubErr != nil {
				l.logger.ErrorContext(ctx, "Failed to reply to invocation", logging.Error(pubErr))
			}
		}
	}
	return err
}
