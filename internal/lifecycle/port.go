package lifecycle

import (
	"fmt"
	"net"

	"github.com/agent-brain/core/internal/apperr"
)

// SelectPort binds the explicit port if the caller supplied one, otherwise
// sweeps [start, end] and takes the first bindable port. Returns the bound
// listener (caller owns closing it) and the chosen port.
func SelectPort(bindHost string, explicitPort, start, end int) (net.Listener, int, error) {
	if explicitPort != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindHost, explicitPort))
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.NoPortAvailable, fmt.Sprintf("binding explicit port %d", explicitPort), err)
		}
		return ln, explicitPort, nil
	}

	for p := start; p <= end; p++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindHost, p))
		if err == nil {
			return ln, p, nil
		}
	}
	return nil, 0, apperr.New(apperr.NoPortAvailable, fmt.Sprintf("no available port in range [%d,%d]", start, end))
}
