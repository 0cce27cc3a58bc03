// Package redis wires go-redis into the metering engine.
//
// Connect pings the server with bounded retries and Healthcheck returns a
// liveness probe. Locker provides a distributed per-key lock (SET NX PX with a
// random token, released by a compare-and-delete script) that the subscription
// manager uses to serialize billing events for one provider subscription across
// replicas.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	locker := redis.NewLockerFromConfig(client, cfg)
//	manager := subscription.NewManager(st, st, catalog, subscription.WithLocker(locker))
package redis
