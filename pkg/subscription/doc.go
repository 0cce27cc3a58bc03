// Package subscription applies billing provider events to subscriptions and keeps
// each user's cached plan consistent with them.
//
// The subscription lifecycle is a transition table over Status driven by
// EventName:
//
//   - created and updated move to whatever status the provider reports
//   - cancelled and expired end the subscription from any status
//   - paused and unpaused toggle between paused and active
//   - payment_failed moves to past_due; payment_succeeded recovers to active
//   - resumed reactivates and restores the subscription plan on the user
//
// Events are identified by the provider subscription id. Manager serializes
// event application per id through a Locker (NewMemoryLocker for one process,
// a Redis-backed locker across processes). Every effect overwrites final
// state, so replaying an event converges to the same records.
//
// Unknown event names and events for unknown subscriptions are logged and
// ignored; neither is returned as an error.
//
// # Downgrades
//
// With DowngradeImmediately (the default) a cancellation moves the user to the
// free plan at once, even when the provider reports a later CancelAt. With
// DowngradeAtCancelAt the paid plan is kept until CancelAt and Manager.Reconcile
// applies the downgrade once it passes.
//
// # Paddle
//
// PaddleProvider verifies Paddle-Signature headers and maps Paddle notifications
// (subscription.created, subscription.canceled, transaction.payment_failed and
// so on) to engine events:
//
//	provider, err := subscription.NewPaddleProvider(cfg)
//	ev, err := provider.ParseWebhookRequest(r)
//	if err == nil && ev.Name != "" {
//		err = manager.ApplyBillingEvent(ctx, string(ev.Name), ev.ProviderSubscriptionID, ev.Payload)
//	}
package subscription
