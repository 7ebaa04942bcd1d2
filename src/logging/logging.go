// Package logging constructs the zap logger heapidx's subsystems are wired
// with. There is no package-level logger — callers build one and pass it
// down explicitly, so tests can run many independently configured instances
// side by side.
package logging

import "go.uber.org/zap"

// New builds a *zap.SugaredLogger. debug selects zap's development config
// (human-readable, caller-annotated, debug level); otherwise production
// config (JSON, info level) is used.
func New(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
