package core

import (
	"context"
	"fmt"
	"io"

	"solidcore/internal/archive"
	"solidcore/internal/blob"
	"solidcore/internal/infra/persistence/memory"
	"solidcore/internal/infra/persistence/postgres"
	"solidcore/internal/infra/persistence/sqlite"
	"solidcore/internal/platform/config"
	"solidcore/pkg/model"
	"solidcore/pkg/model/policy"
)

// OpenArchiveStore selects the archive backend named by cfg.StorageDriver.
// Stores that hold a connection implement io.Closer.
func OpenArchiveStore(ctx context.Context, cfg config.Config) (archive.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memory.NewStore(), nil
	case "", config.StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// OpenBlobStore selects the export backend named by cfg.Blob.Driver.
func OpenBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	return blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          cfg.Blob.S3Region,
			Bucket:          cfg.Blob.S3Bucket,
			Prefix:          cfg.Blob.S3Prefix,
			Endpoint:        cfg.Blob.S3Endpoint,
			PathStyle:       cfg.Blob.S3PathStyle,
			AccessKeyID:     cfg.Blob.S3AccessKeyID,
			SecretAccessKey: cfg.Blob.S3SecretAccessKey,
		},
	})
}

// OpenService builds a service from cfg: archive and blob stores, archive
// encoding, history limit and the attribute policy file. The returned close
// func releases the archive store connection. opts are applied after the
// configured ones.
func OpenService(ctx context.Context, cfg config.Config, doc *model.Document, opts ...ServiceOption) (*Service, func() error, error) {
	codec, err := archive.CodecFor(cfg.ArchiveEncoding)
	if err != nil {
		return nil, nil, err
	}
	var pol *policy.Policy
	if cfg.AttribPolicy != "" {
		if pol, err = policy.Load(cfg.AttribPolicy); err != nil {
			return nil, nil, fmt.Errorf("load attribute policy: %w", err)
		}
	}
	archives, err := OpenArchiveStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive store: %w", err)
	}
	closeFn := func() error {
		if c, ok := archives.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	blobs, err := OpenBlobStore(ctx, cfg)
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	base := []ServiceOption{WithArchiveStore(archives), WithBlobStore(blobs), WithCodec(codec)}
	svc := NewService(doc, append(base, opts...)...)
	if cfg.MaxStates > 0 {
		if err := svc.Stream().SetMaxStates(cfg.MaxStates); err != nil {
			_ = closeFn()
			return nil, nil, err
		}
	}
	svc.ApplyPolicy(pol)
	return svc, closeFn, nil
}
