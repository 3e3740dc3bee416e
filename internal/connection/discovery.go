package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"time"
)

// DiscoveredServer is a server found on the local network.
type DiscoveredServer struct {
	ID              string `json:"Id"`
	Name            string `json:"Name"`
	Address         string `json:"Address"`
	EndpointAddress string `json:"EndpointAddress,omitempty"`
}

// Discoverer finds media servers on the local network within the given
// timeout. Implementations must degrade to an empty list, not an error,
// when no discovery channel is available.
type Discoverer func(ctx context.Context, timeout time.Duration) ([]DiscoveredServer, error)

const (
	discoveryPort    = 7359
	discoveryMessage = "Who is PlayheadServer?"
)

// NewUDPDiscoverer returns a Discoverer which broadcasts a discovery
// datagram and collects JSON replies until the timeout elapses.
func NewUDPDiscoverer(logger *slog.Logger) Discoverer {
	return func(ctx context.Context, timeout time.Duration) ([]DiscoveredServer, error) {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
		if err != nil {
			logger.Debug("Discovery unavailable", "err", err)
			return nil, nil
		}
		defer conn.Close() //nolint:errcheck

		broadcast := &net.UDPAddr{IP: net.IPv4bcast, Port: discoveryPort}
		if _, err := conn.WriteToUDP([]byte(discoveryMessage), broadcast); err != nil {
			logger.Debug("Discovery broadcast failed", "err", err)
			return nil, nil
		}

		deadline := time.Now().Add(timeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, nil
		}

		var servers []DiscoveredServer
		buf := make([]byte, 4096)

		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				// Deadline reached or socket closed: discovery is done.
				return servers, nil
			}

			var server DiscoveredServer
			if err := json.Unmarshal(buf[:n], &server); err != nil {
				logger.Debug("Malformed discovery reply", "from", addr, "err", err)
				continue
			}
			if server.ID == "" {
				continue
			}

			servers = append(servers, server)
		}
	}
}
