// Package auth defines the authentication value objects handed to entity
// and channel constructors, one per provider. Each knows how to produce
// the provider SDK's client configuration.
package auth

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"golang.org/x/crypto/ssh"
	"google.golang.org/api/option"
)

// AWS carries credentials and region for Amazon S3 and SQS. Zero-value
// fields fall back to the SDK's default resolution chain (environment,
// shared config, instance role).
type AWS struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Endpoint overrides the service endpoint, for S3-compatible stores
	// and local test stacks.
	Endpoint string
}

// Config resolves the SDK configuration for this auth object.
func (a AWS) Config(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if a.Region != "" {
		opts = append(opts, awsconfig.WithRegion(a.Region))
	}
	if a.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(a.Profile))
	}
	if a.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, a.SessionToken)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return cfg, nil
}

// Azure carries credentials for Azure Blob Storage and Queue Storage.
// Either ConnectionString is set, or AccountName/AccountKey with an
// optional ServiceURL override.
type Azure struct {
	ConnectionString string
	AccountName      string
	AccountKey       string
	// ServiceURL overrides the derived https://<account>.<service>.core.windows.net.
	ServiceURL string
}

// BlobServiceURL returns the blob endpoint for shared-key construction.
func (a Azure) BlobServiceURL() string {
	if a.ServiceURL != "" {
		return a.ServiceURL
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", a.AccountName)
}

// QueueServiceURL returns the queue endpoint for shared-key construction.
func (a Azure) QueueServiceURL() string {
	if a.ServiceURL != "" {
		return a.ServiceURL
	}
	return fmt.Sprintf("https://%s.queue.core.windows.net/", a.AccountName)
}

// GCP carries credentials for Google Cloud Storage. An empty
// CredentialsFile uses Application Default Credentials. ProjectID is
// only required when buckets are auto-created.
type GCP struct {
	CredentialsFile string
	ProjectID       string
}

// ClientOptions returns the SDK options for this auth object.
func (g GCP) ClientOptions() []option.ClientOption {
	if g.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(g.CredentialsFile)}
}

// SSH carries the session parameters for an SFTP-backed entity.
type SSH struct {
	Host     string
	Port     int
	Username string
	Password string
	// PrivateKey is a PEM-encoded key. When set it is preferred over
	// Password.
	PrivateKey []byte
	// HostKeyCallback verifies the server's host key. Nil accepts any
	// host key, which is only acceptable for trusted networks and tests.
	HostKeyCallback ssh.HostKeyCallback
}

// Addr returns the host:port dial address, defaulting the port to 22.
func (s SSH) Addr() string {
	port := s.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", s.Host, port)
}

// ClientConfig builds the SSH client configuration.
func (s SSH) ClientConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:            s.Username,
		HostKeyCallback: s.HostKeyCallback,
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	if len(s.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(s.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if s.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(s.Password))
	}
	if len(cfg.Auth) == 0 {
		return nil, fmt.Errorf("no SSH authentication method provided")
	}
	return cfg, nil
}
