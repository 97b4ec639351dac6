package consumers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"tracetap/internal/infra/telemetry"
)

// BroadcastPath is where the hub accepts websocket clients.
const BroadcastPath = "/ws"

// StartHubServer serves hub on addr until ctx ends, then disconnects every
// client.
func StartHubServer(ctx context.Context, addr string, hub *Hub, logger *zap.Logger) error {
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle(BroadcastPath, hub)
	return telemetry.Serve(ctx, "broadcast", addr, mux, logger, zap.String("path", BroadcastPath))
}
