package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
)

func TestPendingJoin_SingleResolution(t *testing.T) {
	p := newPendingJoin()
	if p.Resolved() {
		t.Fatal("new future should be unresolved")
	}

	if !p.resolve(0x10, nil) {
		t.Fatal("first resolve should win")
	}
	if p.resolve(0x20, nil) {
		t.Error("second resolve should lose")
	}
	if p.resolve(domain.NoToken, errors.New("late failure")) {
		t.Error("failure after success should lose")
	}

	tok, err := p.Wait(context.Background())
	if err != nil || tok != 0x10 {
		t.Errorf("Wait = %s, %v; want 10, nil", tok, err)
	}
}

func TestPendingJoin_ConcurrentResolve(t *testing.T) {
	p := newPendingJoin()

	var wg sync.WaitGroup
	wins := make(chan domain.AuthToken, 16)
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(tok domain.AuthToken) {
			defer wg.Done()
			if p.resolve(tok, nil) {
				wins <- tok
			}
		}(domain.AuthToken(i))
	}
	wg.Wait()
	close(wins)

	var winners []domain.AuthToken
	for tok := range wins {
		winners = append(winners, tok)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
	if tok, _ := p.Wait(context.Background()); tok != winners[0] {
		t.Errorf("Wait = %s, winner %s", tok, winners[0])
	}
}

func TestPendingJoin_WaitCancelled(t *testing.T) {
	p := newPendingJoin()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if p.Resolved() {
		t.Error("timeout must not resolve the future")
	}
}

func TestProvisioningCallback_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(c *ProvisioningCallback)
		invoke func(c *ProvisioningCallback) error
	}{
		{
			name:   "JoinComplete without arm",
			setup:  func(c *ProvisioningCallback) {},
			invoke: func(c *ProvisioningCallback) error { return c.JoinComplete(1) },
		},
		{
			name:   "JoinFailed without arm",
			setup:  func(c *ProvisioningCallback) {},
			invoke: func(c *ProvisioningCallback) error { return c.JoinFailed("x") },
		},
		{
			name:   "second JoinComplete",
			setup:  func(c *ProvisioningCallback) { c.Arm(); _ = c.JoinComplete(0x9dbbbf60c5376e3) },
			invoke: func(c *ProvisioningCallback) error { return c.JoinComplete(2) },
		},
		{
			name:   "JoinFailed after JoinComplete",
			setup:  func(c *ProvisioningCallback) { c.Arm(); _ = c.JoinComplete(0x9dbbbf60c5376e3) },
			invoke: func(c *ProvisioningCallback) error { return c.JoinFailed("late") },
		},
		{
			name:   "JoinComplete after JoinFailed",
			setup:  func(c *ProvisioningCallback) { c.Arm(); _ = c.JoinFailed("first") },
			invoke: func(c *ProvisioningCallback) error { return c.JoinComplete(3) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewProvisioningCallback(&memLastToken{}, logger.Discard(), nil)
			tt.setup(c)
			if err := tt.invoke(c); !errors.Is(err, domain.ErrCallbackRejected) {
				t.Errorf("err = %v, want ErrCallbackRejected", err)
			}
		})
	}
}

func TestProvisioningCallback_ResultUntouchedByLateCallbacks(t *testing.T) {
	last := &memLastToken{}
	c := NewProvisioningCallback(last, logger.Discard(), nil)
	p := c.Arm()

	if err := c.JoinComplete(0x9dbbbf60c5376e3); err != nil {
		t.Fatal(err)
	}
	_ = c.JoinComplete(0x1)
	_ = c.JoinFailed("late")

	tok, err := p.Wait(context.Background())
	if err != nil || tok != 0x9dbbbf60c5376e3 {
		t.Errorf("result = %s, %v; want 9dbbbf60c5376e3, nil", tok, err)
	}
	if len(last.tokens) != 1 {
		t.Errorf("last-token writes = %d, want 1", len(last.tokens))
	}
}

func TestProvisioningCallback_JoinFailedCarriesReason(t *testing.T) {
	c := NewProvisioningCallback(nil, logger.Discard(), nil)
	p := c.Arm()

	if err := c.JoinFailed("capability mismatch"); err != nil {
		t.Fatal(err)
	}
	_, err := p.Wait(context.Background())
	if !errors.Is(err, domain.ErrJoinFailed) {
		t.Fatalf("err = %v, want ErrJoinFailed", err)
	}
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Details != "daemon reported: capability mismatch" {
		t.Errorf("details = %+v", de)
	}
}

func TestProvisioningCallback_ArmAbandonsPrevious(t *testing.T) {
	c := NewProvisioningCallback(nil, logger.Discard(), nil)
	old := c.Arm()
	fresh := c.Arm()

	if err := c.JoinComplete(5); err != nil {
		t.Fatal(err)
	}
	if old.Resolved() {
		t.Error("abandoned future must not be resolved")
	}
	if !fresh.Resolved() {
		t.Error("current future should be resolved")
	}

	c.Disarm(old)
	if err := c.JoinComplete(6); !errors.Is(err, domain.ErrCallbackRejected) {
		t.Errorf("Disarm of a stale future must keep the current one: err = %v", err)
	}
}
