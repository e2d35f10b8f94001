package inject

import (
	"context"

	"go.sunprobe.dev/agent/telemetry"
)

// Uploader is an injected uploader.
type Uploader struct {
	telemetry.Uploader
	UploadFunc func(ctx context.Context, record telemetry.Record) error
}

// Upload calls the injected Upload or the real version.
func (u *Uploader) Upload(ctx context.Context, record telemetry.Record) error {
	if u.UploadFunc == nil {
		return u.Uploader.Upload(ctx, record)
	}
	return u.UploadFunc(ctx, record)
}
