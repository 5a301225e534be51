// Package history records metadata about fetch runs.
//
// A Run captures when a run started, which mode and failure policy it used,
// how many descriptors were listed and how many detail records were fetched or
// dropped. Runs never carry the fetched records themselves, so a Store cannot
// be used to answer a request without contacting the upstream API.
//
// # Backends
//
//   - RedisStore keeps JSON runs in a capped list (LPUSH + LTRIM).
//   - SQLiteStore keeps runs in a local "runs" table.
//   - NopStore discards everything; it is the default.
//
// # Basic Usage
//
//	store, err := history.Open(ctx, history.Config{Backend: "sqlite", SQLitePath: "./tmp/history.db"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	result, err := orchestrator.Run(ctx, baseURL, mode)
//	_ = store.Save(ctx, history.FromResult(result, err))
//
//	recent, err := store.Recent(ctx, 10)
//
// # Metrics
//
//   - berry_history_writes_total{backend, result} - Save calls by outcome
//   - berry_history_errors_total{backend, operation} - Store operation errors
package history
