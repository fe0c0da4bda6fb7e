package mongodb

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/get-eventually/go-eventually-snapshot/snapshot"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("mongodb: invalid config")

// DefaultReadConcern is the read concern level used when none is configured.
const DefaultReadConcern = "local"

var readConcernLevels = map[string]struct{}{
	"local":        {},
	"majority":     {},
	"available":    {},
	"linearizable": {},
	"snapshot":     {},
}

// BucketNaming is the bucket naming strategy for Aggregate types without
// an explicit bucket. It decodes from "shared" or "per_type".
type BucketNaming snapshot.BucketNaming

// Supported BucketNaming values.
const (
	SharedBucket     = BucketNaming(snapshot.SharedBucket)
	PerAggregateType = BucketNaming(snapshot.PerAggregateType)
)

// Decode implements the envconfig.Decoder interface.
func (n *BucketNaming) Decode(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "shared":
		*n = SharedBucket
	case "per_type":
		*n = PerAggregateType
	default:
		return fmt.Errorf("mongodb.BucketNaming: unknown naming %q, %w", value, ErrInvalidConfig)
	}

	return nil
}

// WriteConcern holds the write acknowledgement settings used for snapshot writes.
type WriteConcern struct {
	// W is the number of nodes acknowledging a write. Zero means the default of 1,
	// since unacknowledged writes could be missed by the prune following a save.
	W        int           `envconfig:"W" default:"1"`
	WTimeout time.Duration `envconfig:"WTIMEOUT"`
	Journal  bool          `envconfig:"JOURNAL"`
}

// Config contains the settings of the MongoDB snapshot backend.
type Config struct {
	URI          string `envconfig:"URI" default:"mongodb://localhost:27017"`
	DatabaseName string `envconfig:"DATABASE_NAME" required:"true"`

	// Buckets maps Aggregate types to a custom GridFS bucket name.
	Buckets       map[string]string `envconfig:"BUCKETS"`
	DefaultBucket string            `envconfig:"DEFAULT_BUCKET" default:"snapshots"`
	BucketNaming  BucketNaming      `envconfig:"BUCKET_NAMING" default:"shared"`

	ReadConcern  string       `envconfig:"READ_CONCERN" default:"local"`
	WriteConcern WriteConcern `envconfig:"WRITE_CONCERN"`
}

// ConfigFromEnv loads a Config from the environment variables with the
// given prefix (e.g. SNAPSHOT_DATABASE_NAME, SNAPSHOT_WRITE_CONCERN_W),
// then validates it.
func ConfigFromEnv(prefix string) (Config, error) {
	var config Config

	if err := envconfig.Process(prefix, &config); err != nil {
		return Config{}, fmt.Errorf("mongodb.ConfigFromEnv: failed to process env, %w: %w", ErrInvalidConfig, err)
	}

	config = config.WithDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("mongodb.ConfigFromEnv: %w", err)
	}

	return config, nil
}

// WithDefaults returns a copy of the Config with the unset values
// replaced by their defaults.
func (c Config) WithDefaults() Config {
	if c.DefaultBucket == "" {
		c.DefaultBucket = snapshot.DefaultBucket
	}

	if c.ReadConcern == "" {
		c.ReadConcern = DefaultReadConcern
	}

	if c.WriteConcern.W == 0 {
		c.WriteConcern.W = 1
	}

	return c
}

// Validate checks the Config, returning an error wrapping ErrInvalidConfig
// for every inconsistency found.
func (c Config) Validate() error {
	var errs []error

	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("mongodb.Config: "+format+", %w", append(args, ErrInvalidConfig)...))
	}

	if c.URI == "" {
		invalid("empty uri")
	}

	if c.DatabaseName == "" {
		invalid("empty database name")
	}

	if _, ok := readConcernLevels[c.ReadConcern]; !ok {
		invalid("unsupported read concern %q", c.ReadConcern)
	}

	if c.WriteConcern.W < 0 {
		invalid("negative write concern w: %d", c.WriteConcern.W)
	}

	if c.WriteConcern.WTimeout < 0 {
		invalid("negative write concern timeout: %s", c.WriteConcern.WTimeout)
	}

	if c.BucketNaming != SharedBucket && c.BucketNaming != PerAggregateType {
		invalid("unknown bucket naming: %d", c.BucketNaming)
	}

	for aggregateType, bucket := range c.Buckets {
		if aggregateType == "" || bucket == "" {
			invalid("empty bucket mapping %q: %q", aggregateType, bucket)
		}
	}

	return errors.Join(errs...)
}

// SnapshotBuckets returns the bucket resolution rules described by the Config.
func (c Config) SnapshotBuckets() snapshot.Buckets {
	return snapshot.Buckets{
		Overrides: maps.Clone(c.Buckets),
		Default:   c.DefaultBucket,
		Naming:    snapshot.BucketNaming(c.BucketNaming),
	}
}

func (c Config) readConcern() *readconcern.ReadConcern {
	return &readconcern.ReadConcern{Level: c.ReadConcern}
}

func (c Config) writeConcern() *writeconcern.WriteConcern {
	wc := &writeconcern.WriteConcern{
		W:        c.WriteConcern.W,
		WTimeout: c.WriteConcern.WTimeout,
	}

	if c.WriteConcern.Journal {
		journal := true
		wc.Journal = &journal
	}

	return wc
}
