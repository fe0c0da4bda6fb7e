package containers

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/testcontainers/testcontainers-go/modules/gcloud"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FirestoreProjectID is the project id used by the Firestore emulator.
const FirestoreProjectID = "test-project"

// FirestoreContainer returns an handle on a Firestore emulator container
// started through testcontainers.
type FirestoreContainer struct {
	*gcloud.GCloudContainer
}

// NewFirestoreContainer creates and starts a new Firestore emulator container
// using testcontainers.
func NewFirestoreContainer(ctx context.Context) (*FirestoreContainer, error) {
	container, err := gcloud.RunFirestore(
		ctx,
		"gcr.io/google.com/cloudsdktool/cloud-sdk:367.0.0-emulators",
		gcloud.WithProjectID(FirestoreProjectID),
	)
	if err != nil {
		return nil, fmt.Errorf("containers.NewFirestoreContainer: failed to run new container, %w", err)
	}

	return &FirestoreContainer{GCloudContainer: container}, nil
}

// emulatorCredentials authenticates every RPC as the emulator owner.
type emulatorCredentials struct{}

func (emulatorCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer owner"}, nil
}

func (emulatorCredentials) RequireTransportSecurity() bool { return false }

// NewClient returns a Firestore client connected to the emulator.
func (c *FirestoreContainer) NewClient(ctx context.Context) (*firestore.Client, error) {
	conn, err := grpc.NewClient(
		c.URI,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(emulatorCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("containers.FirestoreContainer: failed to dial emulator, %w", err)
	}

	client, err := firestore.NewClient(ctx, FirestoreProjectID, option.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("containers.FirestoreContainer: failed to create client, %w", err)
	}

	return client, nil
}
