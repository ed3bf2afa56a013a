//go:build windows

package platform

import (
	"errors"
	"testing"
)

func TestWindowsPortMutexName(t *testing.T) {
	if got := windowsPortMutexName("joylink", "COM3"); got != `Global\joylink-port-COM3` {
		t.Fatalf("unexpected mutex name %q", got)
	}
}

func TestAcquirePortLockContention(t *testing.T) {
	lock1, err := AcquirePortLock("joylink-test", "COM250")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock1.Release()
	}()

	if _, err := AcquirePortLock("joylink-test", "COM250"); !errors.Is(err, ErrPortLocked) {
		t.Fatalf("expected %v, got %v", ErrPortLocked, err)
	}
}
