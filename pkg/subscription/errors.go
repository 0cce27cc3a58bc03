package subscription

import "errors"

var (
	ErrSubscriptionNotFound      = errors.New("subscription: subscription not found")
	ErrUnhandledBillingEvent     = errors.New("subscription: unhandled billing event")
	ErrMissingSubscriptionID     = errors.New("subscription: provider subscription id is required")
	ErrUserNotResolved           = errors.New("subscription: billing event does not identify a user")
	ErrFailedToApplyEvent        = errors.New("subscription: failed to apply billing event")
	ErrFailedToAcquireLock       = errors.New("subscription: failed to acquire subscription lock")
	ErrFailedToReconcile         = errors.New("subscription: failed to reconcile subscriptions")
	ErrInvalidDowngradePolicy    = errors.New("subscription: invalid downgrade policy")
	ErrMissingWebhookSecret      = errors.New("subscription: billing provider webhook secret is required")
	ErrInvalidProviderEnv        = errors.New("subscription: invalid billing provider environment")
	ErrWebhookVerificationFailed = errors.New("subscription: webhook signature verification failed")
	ErrInvalidWebhookPayload     = errors.New("subscription: invalid webhook payload")
)
