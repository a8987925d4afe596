package main

import (
	"errors"

	"github.com/waftester/vulntracker/pkg/config"
	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/pipeline"
)

// exitCode maps a run error to the documented process exit codes.
func exitCode(err error) int {
	if err == nil {
		return defaults.ExitSuccess
	}
	if errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, config.ErrMissingRequired) ||
		errors.Is(err, pipeline.ErrInvalidOptions) {
		return defaults.ExitUserError
	}
	switch pipeline.ErrorKind(err) {
	case pipeline.KindPartial:
		return defaults.ExitPartial
	case pipeline.KindAuth, pipeline.KindNotFound, pipeline.KindNetwork, pipeline.KindParse:
		return defaults.ExitNetworkError
	default:
		return defaults.ExitInternalError
	}
}
