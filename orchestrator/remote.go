package orchestrator

import "context"

// RemoteRunner submits a pipeline run to an external execution backend
// instead of running it in-process. Submit returns the backend's run
// handle; the local result ends in the submitted state and the backend
// owns everything after that.
type RemoteRunner interface {
	Submit(ctx context.Context, pipeline string, runID string, inputs map[string]any) (handle string, err error)
}
