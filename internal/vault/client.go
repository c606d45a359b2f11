package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/vault/api"

	"landrace-threat/internal/config"
)

// ErrSecretNotFound is returned when nothing is stored at a KV path
var ErrSecretNotFound = errors.New("secret not found")

// Client wraps the HashiCorp Vault KV v2 API
type Client struct {
	client     *api.Client
	secretPath string
}

// NewClient creates a new Vault client
func NewClient(cfg *config.VaultConfig) (*Client, error) {
	apiConfig := api.DefaultConfig()
	apiConfig.Address = cfg.Address
	apiConfig.Timeout = 10 * time.Second

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:     client,
		secretPath: cfg.SecretPath,
	}, nil
}

// StoreSecret stores a secret in Vault KV
func (c *Client) StoreSecret(ctx context.Context, path string, data map[string]interface{}) error {
	payload := map[string]interface{}{
		"data": data,
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, "secret/data/"+path, payload); err != nil {
		return fmt.Errorf("failed to store secret %s: %w", path, err)
	}

	return nil
}

// GetSecret retrieves a secret from Vault KV
func (c *Client) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, "secret/data/"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", path, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, ErrSecretNotFound
	}

	// Deleted versions keep the envelope but carry no payload
	raw, present := secret.Data["data"]
	if !present || raw == nil {
		return nil, ErrSecretNotFound
	}
	data, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret data format at %s", path)
	}

	return data, nil
}

// LoadSecrets reads the service secrets as strings. Non-string values are
// skipped.
func (c *Client) LoadSecrets(ctx context.Context) (map[string]string, error) {
	data, err := c.GetSecret(ctx, c.secretPath)
	if err != nil {
		return nil, err
	}

	secrets := make(map[string]string, len(data))
	for key, value := range data {
		s, ok := value.(string)
		if !ok {
			slog.Warn("Ignoring non-string vault secret", "path", c.secretPath, "key", key)
			continue
		}
		secrets[key] = s
	}
	return secrets, nil
}

// ApplyTo loads the service secrets and overlays them onto cfg. A missing
// secret path leaves cfg untouched.
func (c *Client) ApplyTo(ctx context.Context, cfg *config.Config) error {
	secrets, err := c.LoadSecrets(ctx)
	if errors.Is(err, ErrSecretNotFound) {
		slog.Warn("No secrets stored in vault", "path", c.secretPath)
		return nil
	}
	if err != nil {
		return err
	}

	applied := cfg.ApplySecrets(secrets)
	slog.Info("Applied secrets from vault", "path", c.secretPath, "keys", applied)
	return nil
}

// Health checks Vault health status
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}
