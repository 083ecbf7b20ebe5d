package main

import (
	"context"
	"fmt"

	"candle-aggregator/src/grpc_control"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/models"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------

// startServers runs the HTTP/websocket server and, when a port is set, the
// gRPC health server. Both stop when ctx is done.
func startServers(ctx context.Context, g *errgroup.Group, srv interfaces.IDataExchanger, control *grpc_control.ControlService, config *models.MConfig) {
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Stop()
	})

	if config.GrpcPort == 0 {
		return
	}

	addr := fmt.Sprintf("%s:%d", config.GrpcHost, config.GrpcPort)
	g.Go(func() error {
		return control.Start(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		control.Stop()
		return nil
	})
}
