package client

import (
	"context"
	"time"

	"clinicbook/pkg/logger"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// Client holds the backend connections a service opened at startup. Fields
// stay nil for backends the service does not use.
type Client struct {
	Mongo     *MongoClient
	Redis     *redis.Client
	Firebase  *firebase.App
	Firestore *firestore.Client

	log *logger.Logger
}

func NewClient(log *logger.Logger) *Client {
	return &Client{log: log}
}

func (c *Client) SetMongo(mongoURI string, mongoConnTimeout time.Duration) {
	c.Mongo = NewMongoClient(c.log, mongoURI, mongoConnTimeout)
}

func (c *Client) SetRedis(addr, password string, db int, connTimeout time.Duration) {
	c.Redis = NewRedisClient(c.log, addr, password, db, connTimeout)
}

func (c *Client) SetFirebase(projectID, credentialsFile string, connTimeout time.Duration) {
	c.Firebase, c.Firestore = NewFirebaseClients(c.log, projectID, credentialsFile, connTimeout)
}

func (c *Client) MongoClient() *mongo.Client {
	if c.Mongo == nil {
		return nil
	}
	return c.Mongo.Client
}

func (c *Client) GracefulShutdown(ctx context.Context) {
	if c.Mongo != nil {
		if err := c.Mongo.Client.Disconnect(ctx); err != nil {
			c.log.Error("Failed to disconnect MongoDB", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.log.Error("Failed to close Redis client", "error", err)
		}
	}
	if c.Firestore != nil {
		if err := c.Firestore.Close(); err != nil {
			c.log.Error("Failed to close Firestore client", "error", err)
		}
	}
	c.log.Info("Backend connections closed")
}
