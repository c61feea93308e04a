package config

import "time"

const (
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

const (
	DefaultEnvironment = "development"
	DefaultStoreDriver = StoreMongo

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "clinicbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisDB          = 0
	DefaultRedisConnTimeout = 5 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultAuthMode   = AuthJWT
	DefaultJWTIssuer  = "clinicbook"
	DefaultSessionTTL = 30 * time.Minute

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotPageSize    = 5
	DefaultMaxSlotPageSize = 50

	DefaultReferenceCacheSize = 256
	DefaultReferenceCacheTTL  = 5 * time.Minute

	DefaultOccupancyTopic = "slot-occupancy"
	DefaultEventsEnabled  = true

	DefaultClaimTTL      = 20 * time.Minute
	DefaultSweepSchedule = "@every 1m"
)
