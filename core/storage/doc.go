// Package storage wraps the MinIO (S3 compatible) client.
//
// The matchmaker only writes to object storage: reconcile reports are archived as
// JSON documents so divergence between the queue cache and the waiting store can be
// audited after the fact. The Client interface is deliberately narrow and has a
// testify mock in the mocks subpackage.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
