package redirect

import (
	"math/rand/v2"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ListenerScanner reports the local ports currently bound by a listener.
type ListenerScanner interface {
	ListeningPorts(rc *honey_io.RuntimeContext) (map[int]bool, error)
}

// SocketScanner reads the kernel socket tables: TCP sockets in LISTEN and
// unconnected UDP sockets, IPv4 and IPv6.
type SocketScanner struct{}

func (SocketScanner) ListeningPorts(rc *honey_io.RuntimeContext) (map[int]bool, error) {
	conns, err := net.ConnectionsWithContext(rc.Ctx, "inet")
	if err != nil {
		return nil, cerr.Wrap(err, "failed to scan listening sockets")
	}
	ports := make(map[int]bool)
	for _, c := range conns {
		switch {
		case c.Status == "LISTEN":
			ports[int(c.Laddr.Port)] = true
		case c.Type == sockDgram && c.Raddr.Port == 0 && c.Laddr.Port != 0:
			ports[int(c.Laddr.Port)] = true
		}
	}
	return ports, nil
}

const sockDgram = 2

// PortPicker samples candidates uniformly from [Min, Max].
type PortPicker struct {
	Min, Max    int
	MaxAttempts int
	Reserved    []int
	Intn        func(n int) int
}

// Pick returns a port not present in the scan and not reserved. It gives up
// with a port exhaustion error after MaxAttempts rejected candidates.
func (p PortPicker) Pick(rc *honey_io.RuntimeContext, scanner ListenerScanner) (int, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if p.Max < p.Min {
		return 0, honey_err.NewValidationError("port range is empty")
	}
	intn := p.Intn
	if intn == nil {
		intn = rand.IntN
	}

	bound, err := scanner.ListeningPorts(rc)
	if err != nil {
		return 0, err
	}
	for _, r := range p.Reserved {
		bound[r] = true
	}

	span := p.Max - p.Min + 1
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		candidate := p.Min + intn(span)
		if bound[candidate] {
			logger.Debug("Port candidate in use", zap.Int("port", candidate), zap.Int("attempt", attempt))
			continue
		}
		logger.Info("Selected port", zap.Int("port", candidate), zap.Int("attempts", attempt))
		return candidate, nil
	}
	return 0, honey_err.NewPortExhaustionError(p.MaxAttempts)
}
