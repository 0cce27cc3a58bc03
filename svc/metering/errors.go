package metering

import (
	"errors"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/budget"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

var (
	ErrInvalidConfig        = errors.New("metering: invalid configuration")
	ErrPaddleNotConfigured  = errors.New("metering: paddle webhooks are not configured")
	ErrNotificationsOff     = errors.New("metering: notifications are not configured")
	ErrFailedToStartMeeting = errors.New("metering: failed to start meeting")
	ErrFailedToRecordUsage  = errors.New("metering: failed to record ai usage")
)

// IsRetryable reports whether err is a transient store failure worth retrying.
func IsRetryable(err error) bool {
	return store.IsRetryable(err)
}

// PublicMessage returns text safe to show an end user for err. Store details,
// provider payloads and internal ids never leak.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, meeting.ErrMeetingAlreadyOpen):
		return "You already have an active meeting."
	case errors.Is(err, meeting.ErrMeetingNotFound):
		return "Meeting not found."
	case errors.Is(err, account.ErrUserNotFound):
		return "Account not found."
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnsupportedMediaType),
		errors.Is(err, budget.ErrInvalidEstimate), errors.Is(err, usage.ErrInvalidUsage),
		errors.Is(err, usage.ErrUnknownModel):
		return "The request is invalid."
	case errors.Is(err, ErrPaddleNotConfigured), errors.Is(err, ErrNotificationsOff):
		return "This feature is not available."
	case errors.Is(err, subscription.ErrWebhookVerificationFailed):
		return "Invalid webhook signature."
	case errors.Is(err, subscription.ErrInvalidWebhookPayload):
		return "Invalid webhook payload."
	case IsRetryable(err):
		return "The service is busy. Please try again shortly."
	default:
		return "Something went wrong. Please try again later."
	}
}
