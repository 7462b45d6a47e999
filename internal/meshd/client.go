package meshd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/core/service"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
)

// Well-known daemon names.
const (
	BusName          = "org.bluez.mesh"
	NetworkPath      = dbus.ObjectPath("/org/bluez/mesh")
	NetworkInterface = "org.bluez.mesh.Network1"
	NodeInterface    = "org.bluez.mesh.Node1"
)

// DefaultCallTimeout bounds a single remote call when none is configured.
const DefaultCallTimeout = 30 * time.Second

// Connect opens a private bus connection. An empty address selects the
// system bus.
func Connect(ctx context.Context, address string) (*dbus.Conn, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if address == "" {
		conn, err = dbus.ConnectSystemBus(dbus.WithContext(ctx))
	} else {
		conn, err = dbus.Connect(address, dbus.WithContext(ctx))
	}
	if err != nil {
		return nil, domain.ErrBusUnavailable.WithDetails("connect " + busLabel(address)).WithCause(err)
	}
	return conn, nil
}

func busLabel(address string) string {
	if address == "" {
		return "system bus"
	}
	return address
}

// Client is a Network1 client. It also implements service.NodeDialer.
type Client struct {
	conn        *dbus.Conn
	network     dbus.BusObject
	callTimeout time.Duration
	logger      logger.Logger
}

var (
	_ service.Network    = (*Client)(nil)
	_ service.NodeDialer = (*Client)(nil)
)

// NewClient wraps conn. callTimeout <= 0 selects DefaultCallTimeout.
func NewClient(conn *dbus.Conn, callTimeout time.Duration, log logger.Logger) *Client {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		conn:        conn,
		network:     conn.Object(BusName, NetworkPath),
		callTimeout: callTimeout,
		logger:      log.With("component", "meshd"),
	}
}

func (c *Client) call(ctx context.Context, obj dbus.BusObject, method string, args ...any) *dbus.Call {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	call := obj.CallWithContext(ctx, method, 0, args...)
	c.logger.WithContext(ctx).Debug("remote call",
		"method", method,
		"path", string(obj.Path()),
		"duration", time.Since(start),
		"error", call.Err)
	return call
}

// Attach calls Network1.Attach(o, t) and decodes the node path and the
// per-element model configuration.
func (c *Client) Attach(ctx context.Context, appPath string, token domain.AuthToken) (*domain.AttachResult, error) {
	const method = NetworkInterface + ".Attach"

	var (
		nodePath dbus.ObjectPath
		config   []wireElementConfig
	)
	call := c.call(ctx, c.network, method, dbus.ObjectPath(appPath), uint64(token))
	if call.Err != nil {
		return nil, remoteError(method, call.Err)
	}
	if err := call.Store(&nodePath, &config); err != nil {
		return nil, fmt.Errorf("%s: decode reply: %w", method, err)
	}

	return &domain.AttachResult{
		NodePath:      string(nodePath),
		Configuration: decodeConfiguration(config),
	}, nil
}

// Join calls Network1.Join(o, ay).
func (c *Client) Join(ctx context.Context, appPath string, identity []byte) error {
	const method = NetworkInterface + ".Join"

	call := c.call(ctx, c.network, method, dbus.ObjectPath(appPath), identity)
	if call.Err != nil {
		return remoteError(method, call.Err)
	}
	return nil
}

// ImportLocalNode calls Network1.ImportLocalNode(s, ay) and returns the token.
func (c *Client) ImportLocalNode(ctx context.Context, description string, identity []byte) (domain.AuthToken, error) {
	const method = NetworkInterface + ".ImportLocalNode"

	call := c.call(ctx, c.network, method, description, identity)
	if call.Err != nil {
		return domain.NoToken, remoteError(method, call.Err)
	}
	var token uint64
	if err := call.Store(&token); err != nil {
		return domain.NoToken, fmt.Errorf("%s: decode reply: %w", method, err)
	}
	return domain.AuthToken(token), nil
}

// Node returns a Node1 handle for nodePath.
func (c *Client) Node(nodePath string) service.Node {
	return &nodeClient{
		client: c,
		obj:    c.conn.Object(BusName, dbus.ObjectPath(nodePath)),
	}
}

// DaemonAvailable reports whether the daemon currently owns its bus name.
func (c *Client) DaemonAvailable(ctx context.Context) (bool, error) {
	var owned bool
	call := c.call(ctx, c.conn.BusObject(), "org.freedesktop.DBus.NameHasOwner", BusName)
	if call.Err != nil {
		return false, remoteError("NameHasOwner", call.Err)
	}
	if err := call.Store(&owned); err != nil {
		return false, err
	}
	return owned, nil
}

type nodeClient struct {
	client *Client
	obj    dbus.BusObject
}

// Send calls Node1.Send(o, q, q, ay).
func (n *nodeClient) Send(ctx context.Context, elementPath string, destination, keyIndex uint16, payload []byte) error {
	const method = NodeInterface + ".Send"

	call := n.client.call(ctx, n.obj, method, dbus.ObjectPath(elementPath), destination, keyIndex, payload)
	if call.Err != nil {
		return remoteError(method, call.Err)
	}
	return nil
}

// remoteError keeps daemon errors as they are (name and text survive) and
// maps everything else to ErrBusUnavailable.
func remoteError(method string, err error) error {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return fmt.Errorf("%s: %s: %w", method, derr.Name, err)
	}
	var pderr *dbus.Error
	if errors.As(err, &pderr) {
		return fmt.Errorf("%s: %s: %w", method, pderr.Name, err)
	}
	return domain.ErrBusUnavailable.WithDetails(method).WithCause(err)
}
