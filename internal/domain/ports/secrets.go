package ports

import "context"

// Secret represents a secret value with metadata
type Secret struct {
	Metadata  map[string]string
	Value     string
	Version   string
	CreatedAt string
}

// SecretProvider reads secrets such as gateway signing keys
type SecretProvider interface {
	// GetSecret retrieves a secret by its path
	// Path format: "gateways/{gateway_id}/signing-key"
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
