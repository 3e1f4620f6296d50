package config

import (
	"fmt"
	"os"

	"github.com/driftfs/driftfs/pkg/auth"
)

// AWSAuth converts the AWS settings into credentials for the S3 and SQS
// constructors.
func (s *Settings) AWSAuth() auth.AWS {
	return auth.AWS{
		Region:          s.AWS.Region,
		Profile:         s.AWS.Profile,
		AccessKeyID:     s.AWS.AccessKeyID,
		SecretAccessKey: s.AWS.SecretAccessKey,
		SessionToken:    s.AWS.SessionToken,
		Endpoint:        s.AWS.Endpoint,
	}
}

// AzureAuth converts the Azure settings into credentials for the Blob
// Storage and Queue Storage constructors.
func (s *Settings) AzureAuth() auth.Azure {
	return auth.Azure{
		ConnectionString: s.Azure.ConnectionString,
		AccountName:      s.Azure.AccountName,
		AccountKey:       s.Azure.AccountKey,
		ServiceURL:       s.Azure.ServiceURL,
	}
}

// GCPAuth converts the GCP settings into credentials for the Cloud
// Storage constructors.
func (s *Settings) GCPAuth() auth.GCP {
	return auth.GCP{
		CredentialsFile: s.GCP.CredentialsFile,
		ProjectID:       s.GCP.ProjectID,
	}
}

// SSHAuth converts the SSH settings into credentials for the SFTP
// constructors, reading the private key file if one is configured.
func (s *Settings) SSHAuth() (auth.SSH, error) {
	a := auth.SSH{
		Host:     s.SSH.Host,
		Port:     s.SSH.Port,
		Username: s.SSH.Username,
		Password: s.SSH.Password,
	}
	if s.SSH.PrivateKeyFile != "" {
		key, err := os.ReadFile(s.SSH.PrivateKeyFile)
		if err != nil {
			return auth.SSH{}, fmt.Errorf("reading private key file: %w", err)
		}
		a.PrivateKey = key
	}
	return a, nil
}
