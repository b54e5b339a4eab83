//go:build !windows

package hotkey

import "context"

// Listen is not supported on non-Windows builds.
func Listen(_ context.Context, _ Handler) error {
	return ErrUnsupported
}
