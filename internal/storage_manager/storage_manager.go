package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BackendType selects where files are kept.
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
)

// Namespaces used by the assistant.
const (
	NamespacePersona = "persona"
	NamespaceBackups = "backups"
)

// Config selects and configures a backend.
type Config struct {
	Backend BackendType
	// BaseDir is the root directory of the local backend.
	BaseDir string
	// Bucket, Prefix, Region and Endpoint configure the s3 backend. Endpoint
	// switches to path-style addressing for S3-compatible servers.
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// Client overrides the S3 client built from the default AWS chain.
	Client S3API
}

// StorageManager hands out namespaced providers over one backend.
type StorageManager struct {
	backend  BackendType
	provider FileProvider
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (*StorageManager, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		if strings.TrimSpace(cfg.BaseDir) == "" {
			return nil, fmt.Errorf("base directory is required for local storage")
		}
		return &StorageManager{backend: BackendLocal, provider: NewLocalFileProvider(cfg.BaseDir)}, nil

	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 storage")
		}
		client := cfg.Client
		if client == nil {
			var err error
			if client, err = newS3Client(ctx, cfg); err != nil {
				return nil, err
			}
		}
		return &StorageManager{backend: BackendS3, provider: NewS3FileProvider(client, cfg.Bucket, cfg.Prefix)}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// NewWithProvider wraps an existing provider.
func NewWithProvider(provider FileProvider) *StorageManager {
	return &StorageManager{provider: provider}
}

func newS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Provider returns a provider scoped to namespace.
func (m *StorageManager) Provider(namespace string) FileProvider {
	return Scope(m.provider, namespace)
}

// Backend reports the active backend.
func (m *StorageManager) Backend() BackendType {
	return m.backend
}
