package gcp

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// CredentialsPathEnv points at a service-account JSON file for local runs.
// On GCP the ambient service account is used instead.
const CredentialsPathEnv = "FIREBASE_CONFIG"

// GetApp creates a Firebase App instance.
func GetApp(ctx context.Context) (*firebase.App, error) {
	if path, found := os.LookupEnv(CredentialsPathEnv); found && path != "" {
		return firebase.NewApp(ctx, nil, option.WithCredentialsFile(path))
	}
	return firebase.NewApp(ctx, nil)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
func InitFirebaseAuth(ctx context.Context) (*firebase.App, *firebaseauth.Client, error) {
	app, err := GetApp(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	fbAuth, err := app.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase auth [%w]", err)
	}

	return app, fbAuth, nil
}

// InitFirestore returns a Firestore client from an initialized Firebase App.
// The client provides the three capabilities the engine builds on: durable
// documents, multi-document transactions, and snapshot change feeds.
func InitFirestore(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing firestore client [%w]", err)
	}
	return client, nil
}
