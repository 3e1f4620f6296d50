package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driftfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// clearProviderEnv keeps ambient provider variables from bleeding into
// override assertions.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AWS_REGION", "AWS_PROFILE", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"AZURE_STORAGE_CONNECTION_STRING", "GOOGLE_APPLICATION_CREDENTIALS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearProviderEnv(t)
	path := writeSettings(t, `
aws:
  region: eu-west-1
  profile: dev
azure:
  connection_string: "UseDevelopmentStorage=true"
gcp:
  project_id: my-project
ssh:
  host: files.example.com
  username: deploy
defaults:
  cache: true
  chunk_size: 1048576
  polling_frequency: 5s
`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", s.AWS.Region)
	assert.Equal(t, "dev", s.AWS.Profile)
	assert.Equal(t, "UseDevelopmentStorage=true", s.Azure.ConnectionString)
	assert.Equal(t, "my-project", s.GCP.ProjectID)
	assert.Equal(t, "files.example.com", s.SSH.Host)
	assert.True(t, s.Defaults.Cache)
	assert.Equal(t, int64(1048576), s.Defaults.ChunkSize)
	assert.Equal(t, 5*time.Second, s.Defaults.PollingFrequency)
	assert.Equal(t, "driftfs", s.Defaults.MetricsNamespace)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverridesWin(t *testing.T) {
	clearProviderEnv(t)
	path := writeSettings(t, `
aws:
  region: eu-west-1
`)
	t.Setenv("AWS_REGION", "us-east-2")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", s.AWS.Region)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults valid", func(*Settings) {}, false},
		{"azure account without key", func(s *Settings) {
			s.Azure.AccountName = "acct"
		}, true},
		{"azure account with key", func(s *Settings) {
			s.Azure.AccountName = "acct"
			s.Azure.AccountKey = "secret"
		}, false},
		{"ssh host without username", func(s *Settings) {
			s.SSH.Host = "h"
		}, true},
		{"negative chunk size", func(s *Settings) {
			s.Defaults.ChunkSize = -1
		}, true},
		{"negative polling frequency", func(s *Settings) {
			s.Defaults.PollingFrequency = -time.Second
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthConversions(t *testing.T) {
	s := Default()
	s.AWS.Region = "us-west-2"
	s.AWS.AccessKeyID = "AKIA"
	s.Azure.AccountName = "acct"
	s.Azure.AccountKey = "secret"
	s.GCP.ProjectID = "proj"

	assert.Equal(t, "us-west-2", s.AWSAuth().Region)
	assert.Equal(t, "AKIA", s.AWSAuth().AccessKeyID)
	assert.Equal(t, "acct", s.AzureAuth().AccountName)
	assert.Equal(t, "proj", s.GCPAuth().ProjectID)
}

func TestSSHAuthReadsKeyFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, []byte("key material"), 0o600))

	s := Default()
	s.SSH.Host = "h"
	s.SSH.Username = "u"
	s.SSH.PrivateKeyFile = keyPath

	a, err := s.SSHAuth()
	require.NoError(t, err)
	assert.Equal(t, []byte("key material"), a.PrivateKey)

	s.SSH.PrivateKeyFile = filepath.Join(t.TempDir(), "absent")
	_, err = s.SSHAuth()
	assert.Error(t, err)
}
