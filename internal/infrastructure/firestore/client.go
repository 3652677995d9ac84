package firestore

import (
	"context"
	"fmt"
	"log"
	"os"

	cloudfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Clients bundles the Firebase services this backend consumes. A nil
// Firestore/Auth means Firebase is not configured and the caller should fall
// back to the in-memory store and dev-mode auth.
type Clients struct {
	App       *firebase.App
	Firestore *cloudfirestore.Client
	Auth      *auth.Client
}

// Enabled reports whether Firebase credentials were found.
func (c *Clients) Enabled() bool {
	return c != nil && c.Firestore != nil
}

// NewClients initializes the Firebase app from FIREBASE_CREDENTIALS_PATH, or
// FIREBASE_CREDENTIALS_JSON as a fallback. Missing credentials disable
// Firebase rather than failing startup.
func NewClients(ctx context.Context) (*Clients, error) {
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON")
		if credJSON == "" {
			log.Println("Warning: No Firebase credentials found. Using in-memory strategy store.")
			return &Clients{}, nil
		}

		tmpFile, err := os.CreateTemp("", "firebase-credentials-*.json")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
		defer tmpFile.Close()

		if _, err := tmpFile.Write([]byte(credJSON)); err != nil {
			return nil, fmt.Errorf("failed to write credentials: %w", err)
		}
		credPath = tmpFile.Name()
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}

	log.Println("Firebase initialized")
	return &Clients{App: app, Firestore: fsClient, Auth: authClient}, nil
}
