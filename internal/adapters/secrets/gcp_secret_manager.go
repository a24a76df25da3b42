package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretManagerConfig contains configuration for GCP Secret Manager
type GCPSecretManagerConfig struct {
	ProjectID string
	CacheTTL  time.Duration
}

// DefaultGCPSecretManagerConfig returns default configuration
func DefaultGCPSecretManagerConfig(projectID string) *GCPSecretManagerConfig {
	return &GCPSecretManagerConfig{
		ProjectID: projectID,
		CacheTTL:  5 * time.Minute,
	}
}

type secretVersionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretProvider reads gateway keys from Google Cloud Secret Manager.
// Secret ids cannot contain slashes, so "gateways/7/signing-key" is stored
// as the secret "gateways-7-signing-key".
type GCPSecretProvider struct {
	client    secretVersionAccessor
	closer    func() error
	projectID string
	logger    *zap.Logger
	cache     *secretCache
}

var _ ports.SecretProvider = (*GCPSecretProvider)(nil)

// NewGCPSecretProvider creates a provider using application default credentials
func NewGCPSecretProvider(ctx context.Context, cfg *GCPSecretManagerConfig, logger *zap.Logger) (*GCPSecretProvider, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	logger.Info("GCP Secret Manager provider initialized",
		zap.String("project_id", cfg.ProjectID),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	p := newGCPSecretProvider(client, cfg, logger)
	p.closer = client.Close
	return p, nil
}

func newGCPSecretProvider(client secretVersionAccessor, cfg *GCPSecretManagerConfig, logger *zap.Logger) *GCPSecretProvider {
	return &GCPSecretProvider{
		client:    client,
		closer:    func() error { return nil },
		projectID: cfg.ProjectID,
		logger:    logger,
		cache:     newSecretCache(true, cfg.CacheTTL),
	}
}

// Close closes the underlying client
func (g *GCPSecretProvider) Close() error {
	return g.closer()
}

// GetSecret retrieves the latest version of the secret at path
func (g *GCPSecretProvider) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := g.cache.get(path); cached != nil {
		return cached, nil
	}

	secretID := gcpSecretID(path)
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.projectID, secretID)

	result, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		g.logger.Error("Failed to access GCP secret",
			zap.String("path", path),
			zap.String("secret_name", name),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to access GCP secret %s: %w", path, err)
	}

	secret := &ports.Secret{
		Value:   string(result.GetPayload().GetData()),
		Version: lastSegment(result.GetName()),
		Metadata: map[string]string{
			"gcp_project_id": g.projectID,
			"gcp_secret":     secretID,
		},
	}

	g.cache.set(path, secret)
	return secret, nil
}

func gcpSecretID(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", "-")
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
