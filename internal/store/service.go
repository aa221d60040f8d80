// Package store is a thin client for a keyed JSON document collection exposed over
// the Firebase Realtime Database REST protocol.
//
// Endpoints, relative to the collection base URL:
//   - GET    <base>.json       read every record
//   - GET    <base>/<id>.json  read one record
//   - PATCH  <base>/<id>.json  partial update with body {field: value}
//   - POST   <base>.json       create, responds with {"name": "<newId>"}
//   - DELETE <base>/<id>.json  remove
//
// The client is stateless and never retries. Every failed exchange is reported as a
// *TransportError; callers decide whether to retry.
//
// Optional authentication:
//   - FIREBASE_AUTH_TOKEN: database secret or ID token, appended as ?auth=
//   - STORE_USE_OAUTH=true: service account from GOOGLE_APPLICATION_CREDENTIALS or
//     GOOGLE_CREDENTIALS, sent as an OAuth2 bearer token
package store

import (
	"context"

	"invoicesync/pkg/models"
)

// OAuth scopes accepted by the Realtime Database REST API.
var OAuthScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/firebase.database",
}

// Service is the remote collection contract used by the rest of the engine.
type Service interface {
	// ReadAll fetches every record in raw form. An empty collection is not an error.
	ReadAll(ctx context.Context) (models.RawCollection, error)

	// ReadOne fetches a single record. Returns ErrNotFound when the key is absent.
	ReadOne(ctx context.Context, id string) (models.RawRecord, error)

	// PatchField updates exactly one field of one record.
	PatchField(ctx context.Context, id string, field models.Field, value any) error

	// CreateRecord stores a new record and returns the store-assigned id.
	CreateRecord(ctx context.Context, record *models.Record) (string, error)

	// DeleteRecord removes a record.
	DeleteRecord(ctx context.Context, id string) error
}
