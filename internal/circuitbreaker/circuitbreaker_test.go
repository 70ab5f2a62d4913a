package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/notify"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestCircuitBreaker_StartsInClosedState(t *testing.T) {
	cb := New(DefaultConfig("test"), testLogger())
	if cb.GetState() != StateClosed {
		t.Fatalf("expected StateClosed, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_AllowsWhenClosed(t *testing.T) {
	cb := New(DefaultConfig("test"), testLogger())
	for i := 0; i < 10; i++ {
		if !cb.Allow() {
			t.Fatalf("delivery %d should be allowed", i)
		}
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, RecoveryTimeout: 1 * time.Second}, testLogger())
	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.RecordFailure()
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_RejectsWhenOpen(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 5 * time.Second}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("should reject when open")
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("should allow probe after timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_ClosesOnSuccessfulProbe(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	cb.Allow()
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected StateClosed, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_ReopensOnFailedProbe(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	cb.Allow()
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	if cb.GetState() != StateClosed {
		t.Fatal("success should have reset failure count")
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond, HalfOpenMaxProbes: 1}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("first half-open probe should be allowed")
	}
	if cb.Allow() {
		t.Fatal("second half-open probe should be rejected")
	}
}

func TestCircuitBreaker_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig("pushover")
	if cfg.MaxFailures != 5 {
		t.Fatalf("max_failures = %d", cfg.MaxFailures)
	}
	if cfg.RecoveryTimeout != 30*time.Second {
		t.Fatalf("recovery_timeout = %v", cfg.RecoveryTimeout)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d) = %s, want %s", tt.s, got, tt.want)
		}
	}
}

// --- ProtectedNotifier tests ---

type stubNotifier struct {
	name       string
	configured bool
	result     bool
	sendCalls  int
}

func (s *stubNotifier) Name() string     { return s.name }
func (s *stubNotifier) Configured() bool { return s.configured }

func (s *stubNotifier) Send(ctx context.Context, d notify.Delivery) bool {
	s.sendCalls++
	return s.result
}

func TestProtectedNotifier_PassesThrough(t *testing.T) {
	stub := &stubNotifier{name: "discord", configured: true, result: true}
	p := Protect(stub, DefaultConfig("discord"), testLogger())

	if !p.Send(context.Background(), notify.Delivery{Title: "t"}) {
		t.Fatal("expected delivery to succeed")
	}
	if stub.sendCalls != 1 {
		t.Fatalf("send calls = %d", stub.sendCalls)
	}
}

func TestProtectedNotifier_DelegatesIdentity(t *testing.T) {
	stub := &stubNotifier{name: "smtp", configured: false}
	p := Protect(stub, DefaultConfig("smtp"), testLogger())

	if p.Name() != "smtp" {
		t.Errorf("name = %s", p.Name())
	}
	if p.Configured() {
		t.Error("expected unconfigured")
	}
}

func TestProtectedNotifier_FailsFastWhenOpen(t *testing.T) {
	stub := &stubNotifier{name: "pushover", configured: true, result: false}
	p := Protect(stub, Config{Name: "pushover", MaxFailures: 2, RecoveryTimeout: time.Minute}, testLogger())

	// Two failed deliveries trip the circuit.
	p.Send(context.Background(), notify.Delivery{})
	p.Send(context.Background(), notify.Delivery{})
	if stub.sendCalls != 2 {
		t.Fatalf("send calls = %d", stub.sendCalls)
	}

	// The tripped circuit rejects without reaching the destination.
	if p.Send(context.Background(), notify.Delivery{}) {
		t.Fatal("expected rejected delivery to report failure")
	}
	if stub.sendCalls != 2 {
		t.Fatalf("send calls after open = %d", stub.sendCalls)
	}
}

func TestProtectedNotifier_RecoversThroughProbe(t *testing.T) {
	stub := &stubNotifier{name: "pushover", configured: true, result: false}
	p := Protect(stub, Config{Name: "pushover", MaxFailures: 1, RecoveryTimeout: 50 * time.Millisecond}, testLogger())

	p.Send(context.Background(), notify.Delivery{})
	if p.breaker.GetState() != StateOpen {
		t.Fatalf("expected open circuit, got %s", p.breaker.GetState())
	}

	time.Sleep(60 * time.Millisecond)
	stub.result = true

	if !p.Send(context.Background(), notify.Delivery{}) {
		t.Fatal("expected probe to succeed")
	}
	if p.breaker.GetState() != StateClosed {
		t.Fatalf("expected closed circuit, got %s", p.breaker.GetState())
	}
}
