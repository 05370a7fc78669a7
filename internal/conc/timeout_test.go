package conc

import (
	"testing"
	"time"
)

func TestTimeoutInfinite(t *testing.T) {
	inf := Infinite()
	if inf.Expired() {
		t.Error("infinite timeout expired")
	}
	if !inf.IsInfinite() {
		t.Error("IsInfinite = false")
	}
	if inf.Remaining() <= time.Hour {
		t.Error("infinite remaining too small")
	}
}

func TestTimeoutImmediate(t *testing.T) {
	imm := Immediate()
	if !imm.Expired() {
		t.Error("immediate timeout not expired")
	}
	if imm.Remaining() != 0 {
		t.Errorf("Remaining = %v, want 0", imm.Remaining())
	}
}

func TestTimeoutAfter(t *testing.T) {
	to := After(50 * time.Millisecond)
	if to.Expired() {
		t.Error("fresh timeout already expired")
	}
	if to.Remaining() == 0 {
		t.Error("fresh timeout has no remaining time")
	}
	time.Sleep(60 * time.Millisecond)
	if !to.Expired() {
		t.Error("elapsed timeout not expired")
	}
	if to.Remaining() != 0 {
		t.Errorf("Remaining after expiry = %v", to.Remaining())
	}
}

func TestTimeoutZeroValue(t *testing.T) {
	var to Timeout
	if !to.Expired() {
		t.Error("zero timeout should be expired")
	}
}
