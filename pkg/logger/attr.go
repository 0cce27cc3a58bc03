package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Error records err under "error". A nil err yields an empty Attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func UserID(id uuid.UUID) slog.Attr {
	return idAttr("user_id", id)
}

func MeetingID(id uuid.UUID) slog.Attr {
	return idAttr("meeting_id", id)
}

func idAttr(key string, id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String(key, id.String())
}

// SubscriptionID records the billing provider's subscription id.
func SubscriptionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("subscription_id", id)
}

func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// Decision groups the outcome of a policy check; the code is omitted when empty.
func Decision(allowed bool, code string) slog.Attr {
	attrs := []any{slog.Bool("allowed", allowed)}
	if code != "" {
		attrs = append(attrs, slog.String("code", code))
	}
	return slog.Group("decision", attrs...)
}

func Interval(d time.Duration) slog.Attr {
	return slog.Duration("interval", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}
