package service

import (
	"sync"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
)

// ProvisioningCallback receives the daemon's join result for one node.
// JoinComplete and JoinFailed run on the bus dispatcher's goroutines.
type ProvisioningCallback struct {
	lastToken LastTokenWriter
	logger    logger.Logger
	metrics   *metric.Registry

	mu      sync.Mutex
	pending *PendingJoin
}

// NewProvisioningCallback creates a callback. lastToken may be nil.
func NewProvisioningCallback(lastToken LastTokenWriter, log logger.Logger, metrics *metric.Registry) *ProvisioningCallback {
	if log == nil {
		log = logger.Default()
	}
	return &ProvisioningCallback{
		lastToken: lastToken,
		logger:    log.With("component", "provisioning_callback"),
		metrics:   metrics,
	}
}

// Arm starts a new join cycle. An unresolved future from an earlier cycle
// is abandoned and can no longer be resolved through this callback.
func (c *ProvisioningCallback) Arm() *PendingJoin {
	p := newPendingJoin()
	c.mu.Lock()
	c.pending = p
	c.mu.Unlock()
	return p
}

// Disarm drops the current future if it is still p.
func (c *ProvisioningCallback) Disarm(p *PendingJoin) {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
}

func (c *ProvisioningCallback) current() *PendingJoin {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// JoinComplete resolves the armed future with token and records the token
// in the last-token file. The record is written after the future resolves;
// a failed write is logged and does not fail the callback.
func (c *ProvisioningCallback) JoinComplete(token domain.AuthToken) error {
	p := c.current()
	if p == nil || !p.resolve(token, nil) {
		c.metrics.RecordJoinCallback("rejected")
		c.logger.Warn("JoinComplete rejected", "armed", p != nil, "token", token.String())
		return domain.ErrCallbackRejected.WithDetails("JoinComplete without an unresolved join")
	}
	c.metrics.RecordJoinCallback("complete")
	c.logger.Info("join complete", "token", token.String())

	if c.lastToken != nil {
		if err := c.lastToken.Write(token); err != nil {
			c.logger.Error("failed to record last token", "error", err)
		}
	}
	return nil
}

// JoinFailed resolves the armed future with a join failure carrying reason.
func (c *ProvisioningCallback) JoinFailed(reason string) error {
	p := c.current()
	if p == nil || !p.resolve(domain.NoToken, domain.ErrJoinFailed.WithDetails("daemon reported: "+reason)) {
		c.metrics.RecordJoinCallback("rejected")
		c.logger.Warn("JoinFailed rejected", "armed", p != nil, "reason", reason)
		return domain.ErrCallbackRejected.WithDetails("JoinFailed without an unresolved join")
	}
	c.metrics.RecordJoinCallback("failed")
	c.logger.Error("join failed", "reason", reason)
	return nil
}
