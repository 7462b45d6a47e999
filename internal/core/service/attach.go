package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
	"github.com/yndnr/meshnode-go/pkg/meshmsg"
)

// DefaultJoinTimeout bounds the wait for JoinComplete or JoinFailed.
const DefaultJoinTimeout = 60 * time.Second

// AttacherConfig configures an Attacher.
type AttacherConfig struct {
	// Identity is the node UUID.
	Identity domain.NodeIdentity

	// AppPath is the bus path of the exported application object.
	AppPath string

	// Elements are the local elements; nil means DefaultElements.
	Elements []domain.Element

	// Policy selects the recovery branch after a rejected attach.
	Policy RecoveryPolicy

	// JoinTimeout bounds the join wait. Zero means DefaultJoinTimeout.
	JoinTimeout time.Duration

	// SendRate limits outbound messages per second. Zero disables limiting.
	SendRate float64

	// SendBurst is the limiter bucket size. Values below 1 mean 1.
	SendBurst int

	// LastToken receives tokens delivered by JoinComplete. May be nil.
	LastToken LastTokenWriter

	Logger  logger.Logger
	Metrics *metric.Registry
}

// Attacher drives the attachment state machine for one node identity.
//
// mu guards the state fields only; it is never held across a remote call.
type Attacher struct {
	identity    domain.NodeIdentity
	appPath     string
	elements    []domain.Element
	policy      RecoveryPolicy
	joinTimeout time.Duration

	network  Network
	dialer   NodeDialer
	store    TokenRepository
	callback *ProvisioningCallback
	limiter  *rate.Limiter

	logger  logger.Logger
	metrics *metric.Registry

	mu        sync.Mutex
	state     State
	cycleID   string
	recovered bool
	result    *domain.AttachResult
	node      Node
}

// NewAttacher creates an Attacher in state Detached.
func NewAttacher(cfg AttacherConfig, network Network, dialer NodeDialer, store TokenRepository) (*Attacher, error) {
	if cfg.Identity.IsZero() {
		return nil, domain.ErrInvalidArgument.WithDetails("node identity is required")
	}
	if cfg.AppPath == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("application path is required")
	}
	if network == nil || dialer == nil || store == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("network, node dialer and token store are required")
	}

	elements := cfg.Elements
	if elements == nil {
		elements = domain.DefaultElements()
	}
	elements, err := domain.NewElements(elements)
	if err != nil {
		return nil, err
	}

	joinTimeout := cfg.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With("node", cfg.Identity.String())

	var limiter *rate.Limiter
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}

	a := &Attacher{
		identity:    cfg.Identity,
		appPath:     cfg.AppPath,
		elements:    elements,
		policy:      cfg.Policy,
		joinTimeout: joinTimeout,
		network:     network,
		dialer:      dialer,
		store:       store,
		callback:    NewProvisioningCallback(cfg.LastToken, log, cfg.Metrics),
		limiter:     limiter,
		logger:      log,
		metrics:     cfg.Metrics,
		state:       StateDetached,
	}
	a.metrics.SetState(StateDetached.String())
	return a, nil
}

// Identity returns the node identity.
func (a *Attacher) Identity() domain.NodeIdentity {
	return a.identity
}

// AppPath returns the application bus path.
func (a *Attacher) AppPath() string {
	return a.appPath
}

// Elements returns the local elements.
func (a *Attacher) Elements() []domain.Element {
	return a.elements
}

// Policy returns the recovery policy.
func (a *Attacher) Policy() RecoveryPolicy {
	return a.policy
}

// Callback returns the provisioning callback owned by this Attacher.
func (a *Attacher) Callback() *ProvisioningCallback {
	return a.callback
}

// State returns the current state.
func (a *Attacher) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// NodePath returns the node path reported by the last successful attach,
// or "" when not attached.
func (a *Attacher) NodePath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAttached || a.result == nil {
		return ""
	}
	return a.result.NodePath
}

// Result returns the last successful attach result, or nil.
func (a *Attacher) Result() *domain.AttachResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAttached {
		return nil
	}
	return a.result
}

// Token returns the token currently stored for this node.
func (a *Attacher) Token() domain.AuthToken {
	return a.store.Get(a.identity)
}

// setStateLocked must be called with mu held.
func (a *Attacher) setStateLocked(s State) {
	if a.state == s {
		return
	}
	a.logger.Debug("state change", "cycle_id", a.cycleID, "from", a.state.String(), "to", s.String())
	a.state = s
	a.metrics.SetState(s.String())
}

func (a *Attacher) fail(err error) error {
	a.mu.Lock()
	a.setStateLocked(StateFailed)
	a.mu.Unlock()
	return err
}

func (a *Attacher) cycleLogger(ctx context.Context) logger.Logger {
	a.mu.Lock()
	cycle := a.cycleID
	a.mu.Unlock()
	return a.logger.WithContext(ctx).With("cycle_id", cycle)
}

// Connect runs a full attach cycle: attach with the stored token, and on
// rejection run the configured recovery branch once and attach again.
// Only allowed from Detached or Failed.
func (a *Attacher) Connect(ctx context.Context) (*domain.AttachResult, error) {
	a.mu.Lock()
	state := a.state
	a.mu.Unlock()
	if !state.startsCycle() {
		return nil, domain.ErrInvalidState.WithDetails(fmt.Sprintf("connect in state %s", state))
	}

	if logger.CycleIDFromContext(ctx) == "" {
		ctx = logger.WithCycleID(ctx, ulid.Make().String())
	}

	result, err := a.Attach(ctx, a.store.Get(a.identity))
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrAttachRejected) {
		return nil, err
	}

	var token domain.AuthToken
	switch a.State() {
	case StateImportPending:
		token, err = a.Import(ctx)
	case StateJoinPending:
		token, err = a.Join(ctx)
	default:
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return a.Attach(ctx, token)
}

// Attach calls Network.Attach with token. From Detached or Failed it
// starts a new cycle; from a pending state it is the retry after a
// successful recovery. A rejection before recovery moves to the policy's
// pending state, a rejection after recovery moves to Failed. Either way
// the returned error matches domain.ErrAttachRejected. A call that never
// reached a reply (bus down, context done) moves to Failed and returns an
// error matching domain.ErrBusUnavailable, so no recovery runs.
func (a *Attacher) Attach(ctx context.Context, token domain.AuthToken) (*domain.AttachResult, error) {
	a.mu.Lock()
	switch {
	case a.state.startsCycle():
		a.cycleID = logger.CycleIDFromContext(ctx)
		if a.cycleID == "" {
			a.cycleID = ulid.Make().String()
		}
		a.recovered = false
		a.result = nil
		a.node = nil
	case (a.state == StateImportPending || a.state == StateJoinPending) && a.recovered:
	default:
		state := a.state
		a.mu.Unlock()
		return nil, domain.ErrInvalidState.WithDetails(fmt.Sprintf("attach in state %s", state))
	}
	retry := a.recovered
	a.setStateLocked(StateAttaching)
	a.mu.Unlock()

	log := a.cycleLogger(ctx)
	log.Debug("attaching", "app_path", a.appPath, "token", token.String(), "retry", retry)

	result, err := a.network.Attach(ctx, a.appPath, token)
	if err != nil && isTransportError(ctx, err) {
		// The daemon never judged the token, so recovery would run blind.
		a.metrics.RecordAttach("error")
		log.Error("attach call did not complete", "error", err)
		if errors.Is(err, domain.ErrBusUnavailable) {
			return nil, a.fail(err)
		}
		return nil, a.fail(domain.ErrBusUnavailable.
			WithDetails(fmt.Sprintf("node %s: Attach(%s)", a.identity, a.appPath)).
			WithCause(err))
	}
	if err != nil {
		a.metrics.RecordAttach("rejected")
		rejected := domain.ErrAttachRejected.
			WithDetails(fmt.Sprintf("node %s: Attach(%s)", a.identity, a.appPath)).
			WithCause(err)

		a.mu.Lock()
		if retry {
			a.setStateLocked(StateFailed)
		} else {
			a.setStateLocked(a.policy.pendingState())
		}
		a.mu.Unlock()

		if retry {
			log.Error("attach failed after recovery", "error", err)
		} else {
			log.Info("attach rejected, recovery required", "policy", a.policy.String(), "error", err)
		}
		return nil, rejected
	}

	a.metrics.RecordAttach("ok")
	node := a.dialer.Node(result.NodePath)

	a.mu.Lock()
	a.result = result
	a.node = node
	a.setStateLocked(StateAttached)
	a.mu.Unlock()

	log.Info("attached", "node_path", result.NodePath, "elements", len(result.Configuration))
	for _, ec := range result.Configuration {
		for _, mc := range ec.Models {
			log.Debug("model configuration", "element", ec.Index, "model", fmt.Sprintf("%04x", mc.ModelID), "options", mc.Options)
		}
	}
	return result, nil
}

// isTransportError reports whether err means the Attach call failed
// before the daemon replied, as opposed to the daemon rejecting it.
func isTransportError(ctx context.Context, err error) bool {
	if errors.Is(err, domain.ErrBusUnavailable) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// beginRecovery checks that the node is in want and no recovery ran yet.
func (a *Attacher) beginRecovery(want State, op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != want || a.recovered {
		return domain.ErrInvalidState.WithDetails(fmt.Sprintf("%s in state %s", op, a.state))
	}
	return nil
}

func (a *Attacher) finishRecovery(ctx context.Context, policy string, token domain.AuthToken) (domain.AuthToken, error) {
	if err := a.store.Set(ctx, a.identity, token); err != nil {
		a.metrics.RecordRecovery(policy, "store_failed")
		return domain.NoToken, a.fail(fmt.Errorf("node %s: persist token: %w", a.identity, err))
	}

	a.mu.Lock()
	a.recovered = true
	a.mu.Unlock()

	a.metrics.RecordRecovery(policy, "ok")
	return token, nil
}

// Import runs recovery branch A: create the node from a local description
// with ImportLocalNode and persist the returned token. Only allowed in
// ImportPending, once per cycle. Failure moves to Failed.
func (a *Attacher) Import(ctx context.Context) (domain.AuthToken, error) {
	if err := a.beginRecovery(StateImportPending, "import"); err != nil {
		return domain.NoToken, err
	}
	log := a.cycleLogger(ctx)

	description, err := domain.DescribeNode(a.elements).JSON()
	if err != nil {
		return domain.NoToken, a.fail(domain.ErrInternal.WithDetails("encode node description").WithCause(err))
	}

	log.Debug("importing local node", "description", description)
	token, err := a.network.ImportLocalNode(ctx, description, a.identity.Bytes())
	if err != nil {
		a.metrics.RecordRecovery(RecoveryImport.String(), "failed")
		log.Error("import failed", "error", err)
		return domain.NoToken, a.fail(domain.ErrImportFailed.
			WithDetails(fmt.Sprintf("node %s: ImportLocalNode", a.identity)).
			WithCause(err))
	}

	log.Info("node imported", "token", token.String())
	return a.finishRecovery(ctx, RecoveryImport.String(), token)
}

// Join runs recovery branch B: arm a PendingJoin, call Network.Join and
// wait for the daemon callback, bounded by the join timeout. Only allowed
// in JoinPending, once per cycle. Failure moves to Failed.
func (a *Attacher) Join(ctx context.Context) (domain.AuthToken, error) {
	if err := a.beginRecovery(StateJoinPending, "join"); err != nil {
		return domain.NoToken, err
	}
	log := a.cycleLogger(ctx)

	pending := a.callback.Arm()
	defer a.callback.Disarm(pending)

	log.Debug("joining", "app_path", a.appPath, "timeout", a.joinTimeout)
	if err := a.network.Join(ctx, a.appPath, a.identity.Bytes()); err != nil {
		a.metrics.RecordRecovery(RecoveryJoin.String(), "failed")
		log.Error("join call failed", "error", err)
		return domain.NoToken, a.fail(domain.ErrJoinFailed.
			WithDetails(fmt.Sprintf("node %s: Join(%s)", a.identity, a.appPath)).
			WithCause(err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.joinTimeout)
	defer cancel()

	token, err := pending.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, domain.ErrJoinFailed) {
			a.metrics.RecordRecovery(RecoveryJoin.String(), "failed")
			return domain.NoToken, a.fail(fmt.Errorf("node %s: %w", a.identity, err))
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			a.metrics.RecordRecovery(RecoveryJoin.String(), "timeout")
			log.Error("join timed out", "timeout", a.joinTimeout)
			return domain.NoToken, a.fail(domain.ErrJoinFailed.
				WithDetails(fmt.Sprintf("node %s: no join callback within %s", a.identity, a.joinTimeout)))
		}
		a.metrics.RecordRecovery(RecoveryJoin.String(), "cancelled")
		return domain.NoToken, a.fail(domain.ErrJoinFailed.
			WithDetails(fmt.Sprintf("node %s: join wait cancelled", a.identity)).
			WithCause(err))
	}

	log.Info("node joined", "token", token.String())
	return a.finishRecovery(ctx, RecoveryJoin.String(), token)
}

// SendOpcode sends payload from the given element. Only allowed in Attached.
func (a *Attacher) SendOpcode(ctx context.Context, elementIndex uint8, destination, keyIndex uint16, payload []byte) error {
	a.mu.Lock()
	state, node := a.state, a.node
	a.mu.Unlock()
	if state != StateAttached || node == nil {
		return domain.ErrInvalidState.WithDetails(fmt.Sprintf("send in state %s", state))
	}
	if int(elementIndex) >= len(a.elements) {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("no element %d", elementIndex))
	}
	if keyIndex > domain.MaxKeyIndex && keyIndex != domain.DeviceKeyIndex {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("key index %#x out of range", keyIndex))
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send rate limit: %w", err)
		}
	}

	opName := "unknown"
	if op, _, err := meshmsg.ParseOpcode(payload); err == nil {
		opName = op.String()
	}

	elementPath := domain.ElementPath(a.appPath, elementIndex)
	start := time.Now()
	err := node.Send(ctx, elementPath, destination, keyIndex, payload)
	a.metrics.RecordSend(opName, time.Since(start))
	if err != nil {
		return fmt.Errorf("node %s: Send(%s, %#04x, %#x): %w", a.identity, elementPath, destination, keyIndex, err)
	}

	a.logger.WithContext(ctx).Debug("message sent",
		"element", elementIndex,
		"destination", fmt.Sprintf("%04x", destination),
		"key_index", fmt.Sprintf("%03x", keyIndex),
		"opcode", opName,
		"payload", fmt.Sprintf("%x", payload))
	return nil
}

// CompositionDataGet asks the local node for all composition data pages,
// using the device key.
func (a *Attacher) CompositionDataGet(ctx context.Context) error {
	return a.SendOpcode(ctx, 0, domain.LocalUnicastAddress, domain.DeviceKeyIndex,
		meshmsg.ConfigCompositionDataGet(meshmsg.CompositionPageAll))
}

// AttentionSet asks destination to draw attention for timer seconds,
// using application key 0.
func (a *Attacher) AttentionSet(ctx context.Context, destination uint16, timer uint8) error {
	return a.SendOpcode(ctx, 0, destination, 0, meshmsg.HealthAttentionSet(timer))
}

// Detach drops the attachment locally and returns to Detached. The daemon
// is not contacted.
func (a *Attacher) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = nil
	a.node = nil
	a.recovered = false
	a.setStateLocked(StateDetached)
}
