// Package monitor stores pending async operations with a Redis backend.
//
// When a batch is accepted for asynchronous processing the service returns
// a monitor URL. The resolver only reports it; this package keeps it so a
// separate poller can pick it up later.
//
// # Basic Usage
//
//	store := monitor.NewStore(redisClient, monitor.DefaultConfig(), logger)
//
//	if m, ok := handle.Monitor(); ok {
//		entry, err := store.Save(ctx, m)
//		if err != nil {
//			return err
//		}
//		fmt.Println("poll id:", entry.ID)
//	}
//
//	// Later, in the poller:
//	entry, err := store.Get(ctx, id)
//	if errors.Is(err, monitor.ErrNotFound) {
//		// Expired or already handled
//	}
//	if entry.IsReady(time.Now()) {
//		// GET entry.Location
//	}
//
// # Expiry
//
// Entries expire Config.TTL after their NotBefore time (accepted time plus
// Retry-After).
//
// # Metrics
//
//   - odata_monitor_saved_total - Stored pending operations
//   - odata_monitor_errors_total{operation} - Store operation errors
package monitor
