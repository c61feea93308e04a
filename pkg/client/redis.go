package client

import (
	"context"
	"time"

	"clinicbook/pkg/logger"

	"github.com/go-redis/redis/v8"
)

func NewRedisClient(log *logger.Logger, addr, password string, db int, connTimeout time.Duration) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: connTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis", "error", err, "addr", addr)
	}

	log.Info("Successfully connected to Redis", "addr", addr, "db", db)
	return rdb
}
