package hostapi

import "context"

func newTestCtx() context.Context {
	return context.Background()
}
