// Package logger builds the process's slog.Logger and provides attribute
// helpers for the engine's common log keys.
//
//	log := logger.New(
//		logger.WithConfig(config.MustLoad[logger.Config]()),
//		logger.WithAttr(slog.String("service", "storekit")),
//	)
//	logger.SetAsDefault(log)
//
// The attribute helpers keep key names consistent across packages, so
// "entity_type" in a controller log line and a worker log line always mean
// the same field:
//
//	log.Warn("job retries exhausted",
//		logger.Queue(job.Queue),
//		logger.JobID(job.ID),
//		logger.Attempt(job.Attempts),
//		logger.Alert(),
//	)
package logger
