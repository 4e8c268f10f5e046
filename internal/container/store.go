package container

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/content"
	"github.com/serroba/shortshare/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
)

const (
	connectTimeout  = 10 * time.Second
	mongoCollection = "content_items"
)

// Repository is the configured content store with its schema and
// connection lifecycle.
type Repository struct {
	content.Repository

	migrate func(ctx context.Context) error
	close   func() error
}

// Migrate applies the backend schema. Backends without one do nothing.
func (r *Repository) Migrate(ctx context.Context) error {
	if r.migrate == nil {
		return nil
	}

	return r.migrate(ctx)
}

func (r *Repository) Shutdown() error {
	if r.close == nil {
		return nil
	}

	return r.close()
}

// AWSPackage provides aws.Config from the default credential chain.
func AWSPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (aws.Config, error) {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
		}

		return cfg, nil
	})
}

// StorePackage provides *Repository for the backend named by --store.
func StorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Repository, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		switch opts.Store {
		case BackendMemory:
			return &Repository{Repository: store.NewMemoryStore()}, nil
		case BackendPostgres:
			return newPostgresRepository(ctx, opts)
		case BackendSQLite:
			s, err := store.OpenSQLite(ctx, opts.SQLitePath)
			if err != nil {
				return nil, err
			}

			return &Repository{Repository: s, migrate: s.Migrate, close: s.Close}, nil
		case BackendRedis:
			client, err := do.Invoke[*Redis](i)
			if err != nil {
				return nil, err
			}

			return &Repository{Repository: store.NewRedisStore(client.Client)}, nil
		case BackendMongo:
			return newMongoRepository(ctx, opts)
		case BackendDynamoDB:
			cfg, err := do.Invoke[aws.Config](i)
			if err != nil {
				return nil, err
			}

			client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
				if opts.DynamoEndpoint != "" {
					o.BaseEndpoint = aws.String(opts.DynamoEndpoint)
				}
			})
			s := store.NewDynamoStore(client, opts.DynamoTable)

			return &Repository{Repository: s, migrate: s.Migrate}, nil
		default:
			return nil, fmt.Errorf("unknown store backend %q", opts.Store)
		}
	})
}

func newPostgresRepository(ctx context.Context, opts *Options) (*Repository, error) {
	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	s := store.NewPostgresStore(pool)

	return &Repository{
		Repository: s,
		migrate:    s.Migrate,
		close: func() error {
			pool.Close()

			return nil
		},
	}, nil
}

func newMongoRepository(ctx context.Context, opts *Options) (*Repository, error) {
	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(opts.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	s := store.NewMongoStore(client.Database(opts.MongoDatabase).Collection(mongoCollection))

	return &Repository{
		Repository: s,
		migrate:    s.Migrate,
		close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()

			return client.Disconnect(ctx)
		},
	}, nil
}
