//go:build windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

type windowsPortLock struct {
	handle windows.Handle
}

func acquirePortLock(appID, portName string) (PortLock, error) {
	namePtr, err := windows.UTF16PtrFromString(windowsPortMutexName(appID, portName))
	if err != nil {
		return nil, fmt.Errorf("encode port mutex name: %w", err)
	}

	handle, err := windows.CreateMutex(nil, false, namePtr)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}

		return nil, ErrPortLocked
	}
	if err != nil {
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}

		return nil, fmt.Errorf("create port mutex: %w", err)
	}

	return &windowsPortLock{handle: handle}, nil
}

func (l *windowsPortLock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}

	err := windows.CloseHandle(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("close port mutex handle: %w", err)
	}

	return nil
}

// Serial ports are machine-wide, so the mutex lives in the Global namespace.
func windowsPortMutexName(appID, portName string) string {
	return `Global\` + appID + `-port-` + portName
}
