package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type EndpointKind string

const (
	EndpointNamed    EndpointKind = "named"
	EndpointLoopback EndpointKind = "loopback"
)

// Endpoint addresses the engine: a named local channel or a loopback TCP port.
type Endpoint struct {
	Kind EndpointKind
	Name string
	Port int
}

func NamedChannel(name string) Endpoint {
	return Endpoint{Kind: EndpointNamed, Name: name}
}

func LoopbackSocket(port int) Endpoint {
	return Endpoint{Kind: EndpointLoopback, Port: port}
}

func (e Endpoint) Validate() error {
	switch e.Kind {
	case EndpointNamed:
		name := strings.TrimSpace(e.Name)
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%w: channel name %q", ErrInvalidEndpoint, e.Name)
		}
	case EndpointLoopback:
		if e.Port <= 0 || e.Port > 65535 {
			return fmt.Errorf("%w: port %d", ErrInvalidEndpoint, e.Port)
		}
	case "":
		return ErrEndpointRequired
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidEndpoint, string(e.Kind))
	}
	return nil
}

// Address resolves the dial network and address. Named channels are unix-domain
// sockets named <name>.sock inside runtimeDir.
func (e Endpoint) Address(runtimeDir string) (network, address string, err error) {
	if err := e.Validate(); err != nil {
		return "", "", err
	}
	switch e.Kind {
	case EndpointNamed:
		if runtimeDir == "" {
			runtimeDir = DefaultRuntimeDir()
		}
		return "unix", filepath.Join(runtimeDir, strings.TrimSpace(e.Name)+".sock"), nil
	default:
		return "tcp", fmt.Sprintf("127.0.0.1:%d", e.Port), nil
	}
}

func (e Endpoint) String() string {
	switch e.Kind {
	case EndpointNamed:
		return "named:" + e.Name
	case EndpointLoopback:
		return fmt.Sprintf("loopback:%d", e.Port)
	default:
		return "unset"
	}
}

// DefaultRuntimeDir prefers XDG_RUNTIME_DIR and falls back to the temp dir.
func DefaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
