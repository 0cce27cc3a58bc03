// Package metering wires the plan catalog, usage aggregation, budget policy,
// meeting enforcement and subscription handling into one Engine.
//
// An Engine is built over a Store (Postgres via pkg/pg or the in-memory
// pkg/memstore) and a plans.Catalog:
//
//	catalog, err := metering.LoadCatalog(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	engine, err := metering.New(store, catalog, cfg,
//		metering.WithPaddle(paddle),
//		metering.WithNotifications(manager),
//		metering.WithLocker(locker),
//	)
//
// Policy checks return a budget.Decision; a denial is a result, not an error.
// Errors that wrap store.ErrUnavailable are transient and IsRetryable reports
// them. PublicMessage turns any error into text safe to show an end user.
//
// NewHandler exposes the engine as a JSON API. RunSupervisor and RunReconciler
// are long-running loops meant for an errgroup next to the HTTP server.
package metering
