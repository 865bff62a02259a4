package rtutils

import "github.com/cockroachdb/errors"

// Setup failure kinds. Errors returned from this package carry one of these marks
// where it applies, so callers can test with errors.Is.
var (
	ErrDeviceUnsupported    = errors.New("no physical device supports ray tracing")
	ErrUnsatisfiableMemory  = errors.New("no memory type satisfies the requested properties")
	ErrShaderLoadFailed     = errors.New("shader load failed")
	ErrPipelineCreateFailed = errors.New("ray tracing pipeline creation failed")
	ErrHandleQueryFailed    = errors.New("shader group handle query failed")
	ErrBuildSubmitFailed    = errors.New("acceleration structure build submission failed")
)
