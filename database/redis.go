package database

import (
	"context"
	"log"
	"time"

	config "github.com/nikhilb/event_booking/configs"
	"github.com/redis/go-redis/v9"
)

// Redis backs the audit log and daily analytics counters. It is a best-effort
// side channel: when the connection fails at startup the client stays nil and
// every caller degrades to a no-op.
var Redis *redis.Client

func ConnectRedis() {
	addr := config.ConfigOr("REDIS_ADDR", "localhost:6379")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Config("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis not reachable at %s, audit log and analytics disabled: %v", addr, err)
		Redis = nil
		return
	}

	Redis = client
	log.Printf("✅ Redis connected at %s", addr)
}
