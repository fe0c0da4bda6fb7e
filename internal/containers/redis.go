package containers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer returns an handle on a Redis container
// started through testcontainers.
type RedisContainer struct {
	*tcredis.RedisContainer

	Options *redis.Options
}

// NewRedisContainer creates and starts a new Redis container
// using testcontainers.
func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	withContext := func(msg string, err error) error {
		return fmt.Errorf("containers.NewRedisContainer: %s, %w", msg, err)
	}

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, withContext("failed to run new container", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, withContext("failed to get connection string", err)
	}

	options, err := redis.ParseURL(uri)
	if err != nil {
		return nil, withContext("failed to parse connection string", err)
	}

	return &RedisContainer{
		RedisContainer: container,
		Options:        options,
	}, nil
}
