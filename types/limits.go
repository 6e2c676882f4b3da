package types

import "time"

const (
	MaxJobsPerTenant  = 50
	MaxBlockedWords   = 100
	MaxRequiredWords  = 50
	MaxDelaySeconds   = 3600
	MinJobNameLen     = 3
	MaxJobNameLen     = 50
	MinWordLen        = 2
	MaxWordLen        = 100
	MaxReplacementLen = 200

	SessionFlowTimeout = 10 * time.Minute
	InputFlowTimeout   = 5 * time.Minute
)
