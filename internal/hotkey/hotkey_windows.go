//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmQuit        = 0x0012
	llkhfInjected = 0x10

	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	vkLWin    = 0x5B
	vkRWin    = 0x5C
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	ptX     int32
	ptY     int32
}

// Listen installs a low-level keyboard hook and blocks until ctx is done. Key presses consumed
// by handler are hidden from other applications, key-up included.
func Listen(ctx context.Context, handler Handler) error {
	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		swallowed := make(map[uint32]bool)
		callback := windows.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
			if int32(nCode) >= 0 {
				k := (*kbdllhookstruct)(unsafe.Pointer(lParam))
				if k.flags&llkhfInjected == 0 {
					switch uint32(wParam) {
					case wmKeyDown, wmSysKeyDown:
						if handler(k.vkCode, heldModifiers()) {
							swallowed[k.vkCode] = true
							return 1
						}
					case wmKeyUp, wmSysKeyUp:
						if swallowed[k.vkCode] {
							delete(swallowed, k.vkCode)
							return 1
						}
					}
				}
			}
			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		})

		hook, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, callback, 0, 0)
		if hook == 0 {
			errCh <- fmt.Errorf("SetWindowsHookExW failed: %w", callErr)
			return
		}
		defer procUnhookWindowsHookEx.Call(hook)

		threadID := windows.GetCurrentThreadId()
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				procPostThreadMessageW.Call(uintptr(threadID), wmQuit, 0, 0)
			case <-stop:
			}
		}()
		errCh <- nil

		var m msg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 {
				return
			}
		}
	}()

	if err := <-errCh; err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func heldModifiers() Modifier {
	var held Modifier
	if keyDown(vkControl) {
		held |= ModCtrl
	}
	if keyDown(vkMenu) {
		held |= ModAlt
	}
	if keyDown(vkShift) {
		held |= ModShift
	}
	if keyDown(vkLWin) || keyDown(vkRWin) {
		held |= ModWin
	}
	return held
}

func keyDown(vk uintptr) bool {
	state, _, _ := procGetAsyncKeyState.Call(vk)
	return state&0x8000 != 0
}
