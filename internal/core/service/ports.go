package service

import (
	"context"

	"github.com/yndnr/meshnode-go/internal/core/domain"
)

// Network is the daemon's network management service.
type Network interface {
	// Attach binds the application at appPath to the node owning token.
	Attach(ctx context.Context, appPath string, token domain.AuthToken) (*domain.AttachResult, error)

	// Join starts provisioning of a new node. The result arrives later
	// through JoinComplete or JoinFailed.
	Join(ctx context.Context, appPath string, identity []byte) error

	// ImportLocalNode creates a node from a JSON description and returns
	// its token.
	ImportLocalNode(ctx context.Context, description string, identity []byte) (domain.AuthToken, error)
}

// Node is the daemon's per-node service obtained after Attach.
type Node interface {
	Send(ctx context.Context, elementPath string, destination, keyIndex uint16, payload []byte) error
}

// NodeDialer returns a Node bound to the path reported by Attach.
type NodeDialer interface {
	Node(nodePath string) Node
}

// TokenRepository is the subset of the token store used by the Attacher.
type TokenRepository interface {
	Get(id domain.NodeIdentity) domain.AuthToken
	Set(ctx context.Context, id domain.NodeIdentity, token domain.AuthToken) error
}

// LastTokenWriter records the last token delivered by JoinComplete.
type LastTokenWriter interface {
	Write(token domain.AuthToken) error
}
