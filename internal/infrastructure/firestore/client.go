// internal/infrastructure/firestore/client.go
package firestore

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/artecho/storefront-backend/internal/config"
)

// Client wraps the Firestore client
type Client struct {
	fs *firestore.Client
}

// NewClient connects to the configured project.
// FIRESTORE_EMULATOR_HOST is honoured by the underlying SDK.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
	}

	fs, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to firestore: %w", err)
	}

	log.Printf("✅ Firestore client ready (project %s)", cfg.Firestore.ProjectID)
	return &Client{fs: fs}, nil
}

// Wrap adapts an existing Firestore client
func Wrap(fs *firestore.Client) *Client {
	return &Client{fs: fs}
}

// Firestore returns the underlying client
func (c *Client) Firestore() *firestore.Client {
	return c.fs
}

// Health reads a document that need not exist; only transport errors count
func (c *Client) Health(ctx context.Context) error {
	_, err := c.fs.Doc("health/ping").Get(ctx)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// Close closes the client
func (c *Client) Close() error {
	return c.fs.Close()
}
