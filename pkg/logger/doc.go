// Package logger builds *slog.Logger values with functional options, offers
// attribute constructors with consistent keys (user_id, meeting_id,
// subscription_id, plan_id, decision), and injects attributes carried by a
// context.Context into every record.
//
// # Usage
//
//	log := logger.FromConfig(cfg.Log)
//	ctx = logger.WithAttrs(ctx, logger.SubscriptionID(id))
//	log.InfoContext(ctx, "billing event applied", logger.Event("cancelled"))
//
// Development environments log text at debug level; staging and production log
// JSON at info level. LOG_LEVEL and LOG_FORMAT override those defaults.
package logger
