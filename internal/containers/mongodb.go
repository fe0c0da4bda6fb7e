package containers

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// MongoDBContainer returns an handle on a MongoDB container
// started through testcontainers.
type MongoDBContainer struct {
	*mongodb.MongoDBContainer

	URI string
}

// NewMongoDBContainer creates and starts a new MongoDB container
// using testcontainers.
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	withContext := func(msg string, err error) error {
		return fmt.Errorf("containers.NewMongoDBContainer: %s, %w", msg, err)
	}

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		return nil, withContext("failed to run new container", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, withContext("failed to get connection string", err)
	}

	return &MongoDBContainer{
		MongoDBContainer: container,
		URI:              uri,
	}, nil
}
