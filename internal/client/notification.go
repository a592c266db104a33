package client

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

const DefaultNotificationDuration = 3 * time.Second

// Notification is a transient message. Consumers remove it once Duration has
// passed or when the user dismisses it.
type Notification struct {
	ID        string
	Kind      Kind
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

func NewNotification(kind Kind, message string, now time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Duration:  DefaultNotificationDuration,
		CreatedAt: now,
	}.withDefaults()
}

func (n Notification) withDefaults() Notification {
	if n.Kind == "" {
		n.Kind = KindInfo
	}
	if n.Duration <= 0 {
		n.Duration = DefaultNotificationDuration
	}
	return n
}

func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.CreatedAt.Add(n.withDefaults().Duration))
}

// DismissExpired returns the notifications still showing at now.
func DismissExpired(list []Notification, now time.Time) []Notification {
	return filterNotifications(list, func(n Notification) bool { return !n.Expired(now) })
}

func filterNotifications(list []Notification, keep func(Notification) bool) []Notification {
	var out []Notification
	for _, n := range list {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}
