package grpc

import (
	"context"

	"driftpursuit/intercept/internal/balance"
	"driftpursuit/intercept/internal/campaign"
)

// Simulator aggregates the dependencies required by the gRPC service.
type Simulator interface {
	Simulate(ctx context.Context, req balance.Request) (balance.Response, error)
	Stream(ctx context.Context, req balance.Request, recorder campaign.Recorder) (campaign.Result, error)
}

var _ Simulator = (*balance.Service)(nil)
