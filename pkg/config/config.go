package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"clinicbook/pkg/client"
	"clinicbook/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	StoreDriver string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	FirebaseProjectID       string
	FirebaseCredentialsFile string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	Port string

	AuthMode   string
	JWTSecret  string
	JWTIssuer  string
	CursorKey  string
	SessionTTL time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotPageSize    int
	MaxSlotPageSize int

	ReferenceCacheSize int
	ReferenceCacheTTL  time.Duration

	OccupancyTopic string
	EventsEnabled  bool

	ClaimTTL      time.Duration
	SweepSchedule string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads configuration from the environment and exits on invalid values.
func Load(serviceName string) *Config {
	cfg := FromViper(NewViper(), serviceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// NewViper returns a viper instance bound to the environment with every
// default registered.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(EnvEnvironment, DefaultEnvironment)
	v.SetDefault(EnvStoreDriver, DefaultStoreDriver)
	v.SetDefault(EnvMongoURI, DefaultMongoURI)
	v.SetDefault(EnvMongoDatabaseName, DefaultMongoDatabaseName)
	v.SetDefault(EnvMongoConnTimeout, DefaultMongoConnTimeout)
	v.SetDefault(EnvRedisAddr, DefaultRedisAddr)
	v.SetDefault(EnvRedisDB, DefaultRedisDB)
	v.SetDefault(EnvRedisConnTimeout, DefaultRedisConnTimeout)
	v.SetDefault(EnvPort, DefaultPort)
	v.SetDefault(EnvLogLevel, DefaultLogLevel)
	v.SetDefault(EnvAuthMode, DefaultAuthMode)
	v.SetDefault(EnvJWTIssuer, DefaultJWTIssuer)
	v.SetDefault(EnvSessionTTL, DefaultSessionTTL)
	v.SetDefault(EnvRateLimitRequests, DefaultRateLimitRequests)
	v.SetDefault(EnvRateLimitWindow, DefaultRateLimitWindow)
	v.SetDefault(EnvRequestTimeout, DefaultRequestTimeout)
	v.SetDefault(EnvIdempotencyTTL, DefaultIdempotencyTTL)
	v.SetDefault(EnvMaxRequestSize, DefaultMaxRequestSize)
	v.SetDefault(EnvReadTimeout, DefaultReadTimeout)
	v.SetDefault(EnvWriteTimeout, DefaultWriteTimeout)
	v.SetDefault(EnvIdleTimeout, DefaultIdleTimeout)
	v.SetDefault(EnvShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(EnvSlotPageSize, DefaultSlotPageSize)
	v.SetDefault(EnvMaxSlotPageSize, DefaultMaxSlotPageSize)
	v.SetDefault(EnvReferenceCacheSize, DefaultReferenceCacheSize)
	v.SetDefault(EnvReferenceCacheTTL, DefaultReferenceCacheTTL)
	v.SetDefault(EnvOccupancyTopic, DefaultOccupancyTopic)
	v.SetDefault(EnvEventsEnabled, DefaultEventsEnabled)
	v.SetDefault(EnvClaimTTL, DefaultClaimTTL)
	v.SetDefault(EnvSweepSchedule, DefaultSweepSchedule)

	return v
}

func FromViper(v *viper.Viper, serviceName string) *Config {
	log := logger.New(logger.Config{
		Level:     v.GetString(EnvLogLevel),
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})

	return &Config{
		Environment: v.GetString(EnvEnvironment),
		StoreDriver: v.GetString(EnvStoreDriver),

		MongoURI:          v.GetString(EnvMongoURI),
		MongoDatabaseName: v.GetString(EnvMongoDatabaseName),
		MongoConnTimeout:  v.GetDuration(EnvMongoConnTimeout),

		FirebaseProjectID:       v.GetString(EnvFirebaseProjectID),
		FirebaseCredentialsFile: v.GetString(EnvFirebaseCredentialsFile),

		RedisAddr:        v.GetString(EnvRedisAddr),
		RedisPassword:    v.GetString(EnvRedisPassword),
		RedisDB:          v.GetInt(EnvRedisDB),
		RedisConnTimeout: v.GetDuration(EnvRedisConnTimeout),

		Port: v.GetString(EnvPort),

		AuthMode:   v.GetString(EnvAuthMode),
		JWTSecret:  v.GetString(EnvJWTSecret),
		JWTIssuer:  v.GetString(EnvJWTIssuer),
		CursorKey:  v.GetString(EnvCursorKey),
		SessionTTL: v.GetDuration(EnvSessionTTL),

		RateLimitRequests: v.GetInt(EnvRateLimitRequests),
		RateLimitWindow:   v.GetDuration(EnvRateLimitWindow),

		RequestTimeout: v.GetDuration(EnvRequestTimeout),
		IdempotencyTTL: v.GetDuration(EnvIdempotencyTTL),
		MaxRequestSize: v.GetInt(EnvMaxRequestSize),

		ReadTimeout:     v.GetDuration(EnvReadTimeout),
		WriteTimeout:    v.GetDuration(EnvWriteTimeout),
		IdleTimeout:     v.GetDuration(EnvIdleTimeout),
		ShutdownTimeout: v.GetDuration(EnvShutdownTimeout),

		SlotPageSize:    v.GetInt(EnvSlotPageSize),
		MaxSlotPageSize: v.GetInt(EnvMaxSlotPageSize),

		ReferenceCacheSize: v.GetInt(EnvReferenceCacheSize),
		ReferenceCacheTTL:  v.GetDuration(EnvReferenceCacheTTL),

		OccupancyTopic: v.GetString(EnvOccupancyTopic),
		EventsEnabled:  v.GetBool(EnvEventsEnabled),

		ClaimTTL:      v.GetDuration(EnvClaimTTL),
		SweepSchedule: v.GetString(EnvSweepSchedule),

		Log:    log,
		Client: client.NewClient(log),
	}
}

// Connect opens the backends the configured drivers need.
func (cfg *Config) Connect() {
	switch cfg.StoreDriver {
	case StoreMongo:
		cfg.Client.SetMongo(cfg.MongoURI, cfg.MongoConnTimeout)
	case StoreFirestore:
		cfg.Client.SetFirebase(cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, cfg.MongoConnTimeout)
	}
	if cfg.AuthMode == AuthFirebase && cfg.Client.Firebase == nil {
		cfg.Client.SetFirebase(cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, cfg.MongoConnTimeout)
	}
	if cfg.UsesRedis() {
		cfg.Client.SetRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisConnTimeout)
	}
}

// UsesRedis is false only for fully in-memory runs.
func (cfg *Config) UsesRedis() bool {
	return cfg.StoreDriver != StoreMemory
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreDriver {
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case StoreFirestore:
		if cfg.FirebaseProjectID == "" {
			errors = append(errors, "FirebaseProjectID is required when StoreDriver is firestore")
		}
	case StoreMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of [mongo, firestore, memory], got: %s", cfg.StoreDriver))
	}

	switch cfg.AuthMode {
	case AuthJWT:
		if len(cfg.JWTSecret) < 32 {
			errors = append(errors, "JWTSecret must be at least 32 characters when AuthMode is jwt")
		}
	case AuthFirebase:
		if cfg.FirebaseProjectID == "" {
			errors = append(errors, "FirebaseProjectID is required when AuthMode is firebase")
		}
	default:
		errors = append(errors, fmt.Sprintf("AuthMode must be one of [jwt, firebase], got: %s", cfg.AuthMode))
	}

	if key, err := base64.StdEncoding.DecodeString(cfg.CursorKey); err != nil || len(key) != 32 {
		errors = append(errors, "CursorKey must be a base64-encoded 32-byte key")
	}

	if cfg.UsesRedis() && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RedisConnTimeout", cfg.RedisConnTimeout},
		{"SessionTTL", cfg.SessionTTL},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"ReferenceCacheTTL", cfg.ReferenceCacheTTL},
		{"ClaimTTL", cfg.ClaimTTL},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.SlotPageSize <= 0 {
		errors = append(errors, fmt.Sprintf("SlotPageSize must be positive, got: %d", cfg.SlotPageSize))
	}
	if cfg.MaxSlotPageSize < cfg.SlotPageSize {
		errors = append(errors, fmt.Sprintf("MaxSlotPageSize (%d) must be >= SlotPageSize (%d)", cfg.MaxSlotPageSize, cfg.SlotPageSize))
	}
	if cfg.ReferenceCacheSize <= 0 {
		errors = append(errors, fmt.Sprintf("ReferenceCacheSize must be positive, got: %d", cfg.ReferenceCacheSize))
	}
	if cfg.EventsEnabled && cfg.OccupancyTopic == "" {
		errors = append(errors, "OccupancyTopic cannot be empty when events are enabled")
	}
	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("SweepSchedule is not a valid cron spec: %s", cfg.SweepSchedule))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"environment", cfg.Environment,
		"store_driver", cfg.StoreDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"firebase_project_id", cfg.FirebaseProjectID,
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"port", cfg.Port,
		"auth_mode", cfg.AuthMode,
		"jwt_secret_set", cfg.JWTSecret != "",
		"session_ttl", cfg.SessionTTL,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"slot_page_size", cfg.SlotPageSize,
		"reference_cache_size", cfg.ReferenceCacheSize,
		"reference_cache_ttl", cfg.ReferenceCacheTTL,
		"occupancy_topic", cfg.OccupancyTopic,
		"events_enabled", cfg.EventsEnabled,
		"claim_ttl", cfg.ClaimTTL,
		"sweep_schedule", cfg.SweepSchedule,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func (cfg *Config) GracefulShutdown(ctx context.Context) {
	cfg.Client.GracefulShutdown(ctx)
}

// NormalizeSlotPageSize clamps a requested page size to the configured bounds.
func (cfg *Config) NormalizeSlotPageSize(size int) int {
	if size <= 0 {
		return cfg.SlotPageSize
	}
	return min(size, cfg.MaxSlotPageSize)
}
