package config

const (
	EnvEnvironment = "ENVIRONMENT"
	EnvStoreDriver = "STORE_DRIVER"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvFirebaseProjectID       = "FIREBASE_PROJECT_ID"
	EnvFirebaseCredentialsFile = "FIREBASE_CREDENTIALS_FILE"

	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvRedisDB          = "REDIS_DB"
	EnvRedisConnTimeout = "REDIS_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvAuthMode   = "AUTH_MODE"
	EnvJWTSecret  = "JWT_SECRET"
	EnvJWTIssuer  = "JWT_ISSUER"
	EnvCursorKey  = "CURSOR_KEY"
	EnvSessionTTL = "SESSION_TTL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotPageSize    = "SLOT_PAGE_SIZE"
	EnvMaxSlotPageSize = "MAX_SLOT_PAGE_SIZE"

	EnvReferenceCacheSize = "REFERENCE_CACHE_SIZE"
	EnvReferenceCacheTTL  = "REFERENCE_CACHE_TTL"

	EnvOccupancyTopic = "OCCUPANCY_TOPIC"
	EnvEventsEnabled  = "EVENTS_ENABLED"

	EnvClaimTTL      = "CLAIM_TTL"
	EnvSweepSchedule = "SWEEP_SCHEDULE"
)
