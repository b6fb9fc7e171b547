package main

import (
	"github.com/acksell/pairent/config"
	"go.uber.org/zap"
)

// newLogger writes to stderr so stdout stays machine readable.
func newLogger(c config.Log) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
