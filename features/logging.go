package features

import (
	"context"

	"github.com/ggoodman/langclient-go/internal/logctx"
	"github.com/ggoodman/langclient-go/session"
)

// logContext tags ctx with the session and the feature name for logging.
func logContext(ctx context.Context, s *session.Session, feature string) context.Context {
	return logctx.WithFeatureData(s.Context(ctx), &logctx.FeatureData{Name: feature})
}
