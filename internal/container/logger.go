package container

import (
	"fmt"

	"github.com/samber/do"
	"go.uber.org/zap"
)

// LoggerPackage provides *zap.Logger. The logger is synced on shutdown.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		var (
			logger *zap.Logger
			err    error
		)

		switch opts.LogFormat {
		case "json":
			logger, err = zap.NewProduction()
		case "console", "":
			logger, err = zap.NewDevelopment()
		default:
			return nil, fmt.Errorf("unknown log format %q", opts.LogFormat)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}

		return logger, nil
	})
}
