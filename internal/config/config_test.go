package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, TeamPolicyMembers, cfg.Workflow.TeamPolicy)
	assert.Equal(t, 10*time.Second, cfg.Workflow.OperationTimeout)
	assert.Equal(t, ObjectStoreNone, cfg.ObjectStore.Driver)
	assert.False(t, cfg.Vault.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MEMORY")
	t.Setenv("WORKFLOW_TEAM_POLICY", "editors")
	t.Setenv("NOTIFY_CONCURRENCY", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("WORKFLOW_OPERATION_TIMEOUT", "not-a-duration")

	cfg := FromEnv()

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, TeamPolicyEditors, cfg.Workflow.TeamPolicy)
	assert.Equal(t, 3, cfg.Workflow.NotifyConcurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Workflow.OperationTimeout, "invalid values fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"production without jwt secret", func(c *Config) { c.App.Env = "production"; c.Database.Password = "x" }, true},
		{"production without db password", func(c *Config) { c.App.Env = "production"; c.JWT.Secret = "pem" }, true},
		{"production memory driver needs no db password", func(c *Config) {
			c.App.Env = "production"
			c.JWT.Secret = "pem"
			c.Database.Driver = DriverMemory
		}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"unknown team policy", func(c *Config) { c.Workflow.TeamPolicy = "everyone" }, true},
		{"zero concurrency", func(c *Config) { c.Workflow.NotifyConcurrency = 0 }, true},
		{"s3 without bucket", func(c *Config) { c.ObjectStore.Driver = ObjectStoreS3 }, true},
		{"s3 with bucket", func(c *Config) { c.ObjectStore.Driver = ObjectStoreS3; c.ObjectStore.Bucket = "b" }, false},
		{"unknown object store", func(c *Config) { c.ObjectStore.Driver = "gcs" }, true},
		{"vault without token", func(c *Config) { c.Vault.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplySecrets(t *testing.T) {
	cfg := FromEnv()
	cfg.Database.Password = "from-env"

	applied := cfg.ApplySecrets(map[string]string{
		SecretDBPassword:    "from-vault",
		SecretSMTPPassword:  "",
		SecretS3AccessKeyID: "AKIA",
		"unrelated":         "ignored",
	})

	assert.Equal(t, []string{SecretDBPassword, SecretS3AccessKeyID}, applied)
	assert.Equal(t, "from-vault", cfg.Database.Password)
	assert.Equal(t, "AKIA", cfg.ObjectStore.AccessKeyID)
	assert.Empty(t, cfg.Email.SMTPPassword)
}
