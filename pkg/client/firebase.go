package client

import (
	"context"
	"time"

	"clinicbook/pkg/logger"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewFirebaseClients initializes the Firebase app and its Firestore client.
// An empty credentials file falls back to application default credentials.
func NewFirebaseClients(log *logger.Logger, projectID, credentialsFile string, connTimeout time.Duration) (*firebase.App, *firestore.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		log.Fatal("Failed to initialize Firebase app", "error", err, "project_id", projectID)
	}

	fs, err := app.Firestore(context.Background())
	if err != nil {
		log.Fatal("Failed to create Firestore client", "error", err, "project_id", projectID)
	}

	log.Info("Successfully initialized Firebase", "project_id", projectID)
	return app, fs
}
