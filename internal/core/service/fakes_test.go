package service

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/meshnode-go/internal/core/domain"
)

const testIdentity = "9c791e88-7acb-42e5-95ab-ab75cb74d774"

var errUnknownToken = errors.New("org.bluez.mesh.Error.NotFound: Attach failed")

// fakeNetwork rejects Attach for every token in reject and for NoToken.
type fakeNetwork struct {
	mu sync.Mutex

	reject      map[domain.AuthToken]bool
	rejectAll   bool
	attachErr   error
	importToken domain.AuthToken
	importErr   error
	joinErr     error
	onJoin      func()

	attachTokens []domain.AuthToken
	imports      []string
	joins        int
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{reject: map[domain.AuthToken]bool{domain.NoToken: true}}
}

func (n *fakeNetwork) Attach(ctx context.Context, appPath string, token domain.AuthToken) (*domain.AttachResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attachTokens = append(n.attachTokens, token)
	if n.attachErr != nil {
		return nil, n.attachErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.rejectAll || n.reject[token] {
		return nil, errUnknownToken
	}
	return &domain.AttachResult{
		NodePath: "/org/bluez/mesh/node9c791e887acb42e595abab75cb74d774",
		Configuration: []domain.ElementConfig{
			{Index: 0, Models: []domain.ModelConfig{{ModelID: 0x0000, Options: map[string]any{}}}},
		},
	}, nil
}

func (n *fakeNetwork) Join(ctx context.Context, appPath string, identity []byte) error {
	n.mu.Lock()
	n.joins++
	err, onJoin := n.joinErr, n.onJoin
	n.mu.Unlock()
	if err == nil && onJoin != nil {
		go onJoin()
	}
	return err
}

func (n *fakeNetwork) ImportLocalNode(ctx context.Context, description string, identity []byte) (domain.AuthToken, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.imports = append(n.imports, description)
	if n.importErr != nil {
		return domain.NoToken, n.importErr
	}
	return n.importToken, nil
}

func (n *fakeNetwork) counts() (attaches, imports, joins int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.attachTokens), len(n.imports), n.joins
}

type sentMessage struct {
	elementPath string
	destination uint16
	keyIndex    uint16
	payload     []byte
}

type fakeNode struct {
	mu      sync.Mutex
	path    string
	sent    []sentMessage
	sendErr error
}

func (n *fakeNode) Send(ctx context.Context, elementPath string, destination, keyIndex uint16, payload []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, sentMessage{elementPath, destination, keyIndex, append([]byte(nil), payload...)})
	return nil
}

type fakeDialer struct {
	node *fakeNode
}

func (d *fakeDialer) Node(nodePath string) Node {
	d.node.path = nodePath
	return d.node
}

type memStore struct {
	mu     sync.Mutex
	tokens map[domain.NodeIdentity]domain.AuthToken
	setErr error
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[domain.NodeIdentity]domain.AuthToken)}
}

func (s *memStore) Get(id domain.NodeIdentity) domain.AuthToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[id]
}

func (s *memStore) Set(ctx context.Context, id domain.NodeIdentity, token domain.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.tokens[id] = token
	return nil
}

type memLastToken struct {
	mu     sync.Mutex
	tokens []domain.AuthToken
}

func (r *memLastToken) Write(token domain.AuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return nil
}
