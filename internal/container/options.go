package container

import (
	"fmt"
	"time"
)

// Backend names accepted by the --store, --object-store, --rate-limit-store
// and --events options.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
	BackendRedis      = "redis"
	BackendMongo      = "mongo"
	BackendDynamoDB   = "dynamodb"
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendNone       = "none"
	BackendLog        = "log"
)

// Options is the server configuration. humacli maps every field to a flag
// and a SERVICE_* environment variable.
type Options struct {
	Port    int    `default:"8888" help:"Port to listen on"                                      short:"p"`
	BaseURL string `help:"Public base URL for share links (default http://localhost:{port})"`

	IDLength     int           `default:"4"   help:"Length of generated short identifiers"     short:"l"`
	ContentTTL   time.Duration `default:"24h" help:"Lifetime of submitted content"`
	StoreTimeout time.Duration `default:"5s"  help:"Deadline for each store or object store call"`

	Store          string `default:"memory"                    help:"Content store: memory, postgres, sqlite, redis, mongo or dynamodb"`
	DatabaseURL    string `default:"postgres://localhost:5432/shortshare" help:"Postgres connection string"`
	SQLitePath     string `default:"shortshare.db"             help:"SQLite database file"`
	MongoURI       string `default:"mongodb://localhost:27017" help:"MongoDB connection string"`
	MongoDatabase  string `default:"shortshare"                help:"MongoDB database name"`
	DynamoTable    string `default:"shortshare-content"        help:"DynamoDB table name"`
	DynamoEndpoint string `help:"DynamoDB endpoint override, for DynamoDB Local"`
	RedisAddr      string `default:"localhost:6379"            help:"Redis server address"                                          short:"r"`
	AutoMigrate    bool   `default:"true"                      help:"Apply the content store schema on startup"`

	ObjectStore string `default:"filesystem" help:"Image object store: filesystem or s3"`
	UploadDir   string `default:"uploads"    help:"Directory for the filesystem object store"`
	S3Bucket    string `help:"S3 bucket for images"`
	S3Prefix    string `default:"images/"    help:"Key prefix inside the S3 bucket"`

	CacheSize int           `default:"1000" help:"Content cache capacity in entries"`
	CacheTTL  time.Duration `default:"5m"   help:"Content cache entry lifetime"`

	RateLimitStore  string `default:"memory" help:"Rate limit counters: memory or redis"`
	RateLimitPolicy string `help:"YAML rate limit policy file (default built-in limits)"`
	GlobalRateLimit int    `default:"0"      help:"Requests per minute per client across all routes, 0 disables"`

	Events         string `default:"none" help:"Analytics events: none, memory or redis"`
	AnalyticsStore string `default:"log"  help:"Analytics sink used by consumers: log or redis"`

	LogFormat string `default:"console" help:"Log format: console or json"`
}

// PublicBaseURL is the prefix of every share URL.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// usesRedis reports whether any configured component talks to Redis.
func (o *Options) usesRedis() bool {
	return o.Store == BackendRedis ||
		o.RateLimitStore == BackendRedis ||
		o.Events == BackendRedis ||
		o.AnalyticsStore == BackendRedis
}
