package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"go.uber.org/zap"
)

// LocalSecretProvider reads secrets from files under a base directory.
// WARNING: This is for development only. Use AWS Secrets Manager or Vault in production.
type LocalSecretProvider struct {
	basePath string
	logger   *zap.Logger
}

var _ ports.SecretProvider = (*LocalSecretProvider)(nil)

// NewLocalSecretProvider creates a new local filesystem secret provider
func NewLocalSecretProvider(basePath string, logger *zap.Logger) *LocalSecretProvider {
	return &LocalSecretProvider{
		basePath: basePath,
		logger:   logger,
	}
}

// GetSecret reads basePath/secretPath. The file holds either the raw value or
// a JSON object with "value", "tags" and "created_at".
func (m *LocalSecretProvider) GetSecret(_ context.Context, secretPath string) (*ports.Secret, error) {
	filePath := filepath.Join(m.basePath, filepath.Clean("/"+secretPath))

	m.logger.Debug("Reading secret from filesystem", zap.String("path", secretPath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var secretData struct {
		Value     string            `json:"value"`
		Tags      map[string]string `json:"tags"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &ports.Secret{
			Value:     secretData.Value,
			Version:   "v1",
			Metadata:  secretData.Tags,
			CreatedAt: secretData.CreatedAt,
		}, nil
	}

	return &ports.Secret{
		Value:   strings.TrimRight(string(data), "\r\n"),
		Version: "v1",
	}, nil
}
