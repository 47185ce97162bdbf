// Package pg is the PostgreSQL persistence layer: the connection pool,
// embedded schema migrations and the durable implementations of the
// lifecycle entity store and the job queue repositories.
//
// # Setup
//
//	cfg := config.MustLoad[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
//	entities := pg.NewEntityStore(pool)
//	jobs := pg.NewJobStorage(pool)
//
// EntityStore commits each transition's state change, revision bump and
// transition record in one transaction. JobStorage claims with
// FOR UPDATE SKIP LOCKED so multiple worker processes share a queue
// without coordination; pair it with periodic RecoverExpiredLeases and
// PurgeTerminal calls, which the in-memory storage runs internally but a
// shared database must schedule explicitly.
package pg
