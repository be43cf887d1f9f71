package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/homevisit-api/internal/email"
	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	"github.com/jwalitptl/homevisit-api/pkg/messaging"
)

// EmailDispatcher mails the notification to the user's registered address.
type EmailDispatcher struct {
	email    email.Service
	contacts repository.ContactResolver
}

func NewEmailDispatcher(emailSvc email.Service, contacts repository.ContactResolver) *EmailDispatcher {
	return &EmailDispatcher{email: emailSvc, contacts: contacts}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, n *model.Notification) error {
	to, err := d.contacts.EmailFor(ctx, n.UserID)
	if err != nil {
		return markFailed(n, err)
	}
	n.Recipient = to
	if err := d.email.Send(ctx, to, n.Subject, n.Content); err != nil {
		return markFailed(n, err)
	}
	markSent(n)
	return nil
}

// BrokerDispatcher publishes the notification for in-app delivery.
type BrokerDispatcher struct {
	broker  messaging.Broker
	channel string
}

func NewBrokerDispatcher(broker messaging.Broker, channel string) *BrokerDispatcher {
	if channel == "" {
		channel = messaging.NotificationChannel
	}
	return &BrokerDispatcher{broker: broker, channel: channel}
}

func (d *BrokerDispatcher) Dispatch(ctx context.Context, n *model.Notification) error {
	if err := d.broker.Publish(ctx, d.channel, n); err != nil {
		return markFailed(n, fmt.Errorf("publish to %s: %w", d.channel, err))
	}
	markSent(n)
	return nil
}

// MultiDispatcher fans out to every dispatcher; one failing does not stop
// the others. Each dispatcher works on its own copy, so delivery status is
// per channel.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) Dispatch(ctx context.Context, n *model.Notification) error {
	var errs []error
	for _, d := range m {
		cp := *n
		if err := d.Dispatch(ctx, &cp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func markSent(n *model.Notification) {
	now := time.Now().UTC()
	n.Status = model.NotificationStatusSent
	n.SentAt = &now
	n.LastError = ""
}

func markFailed(n *model.Notification, err error) error {
	n.Status = model.NotificationStatusFailed
	n.LastError = err.Error()
	return err
}
