// Package redis connects the engine to Redis for deployments that run the
// job queue on queue.RedisStorage instead of Postgres.
//
//	cfg := config.MustLoad[redis.Config]()
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	storage, err := queue.NewRedisStorage(client, []string{"notifications", "stock"})
package redis
