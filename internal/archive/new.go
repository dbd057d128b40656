package archive

import (
	"context"
	"fmt"

	"github.com/DMW2151/mta-buses/internal/config"
)

// New builds the sink selected by cfg.Backend.
func New(ctx context.Context, cfg config.ArchiveConfig, runID string) (Sink, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Sink(ctx, cfg.Region, cfg.Bucket, cfg.Prefix, runID)
	case "file":
		return NewFileSink(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
