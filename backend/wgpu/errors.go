package wgpu

import "errors"

// Platform errors.
var (
	// ErrNoDevice is returned when a platform is created without a device.
	ErrNoDevice = errors.New("wgpu: no device")

	// ErrNoAdapter is returned when an instance exposes no GPU adapter.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrNotHALProvider is returned by NewPlatformFromProvider for a provider
	// that does not expose HAL types.
	ErrNotHALProvider = errors.New("wgpu: provider does not expose HAL types")

	// ErrClosed is returned by operations on a closed platform.
	ErrClosed = errors.New("wgpu: platform closed")

	// ErrSharedContextsDisabled is returned by CreateSharedContext when the
	// platform was created with WithSharedContexts(false).
	ErrSharedContextsDisabled = errors.New("wgpu: shared contexts disabled")

	// ErrTooManyContexts is returned when the shared context limit is reached.
	ErrTooManyContexts = errors.New("wgpu: shared context limit reached")

	// ErrContextBusy is returned by MakeCurrent on a context that is already
	// current on some thread.
	ErrContextBusy = errors.New("wgpu: context is already current")

	// ErrContextReleased is returned by operations on a released context.
	ErrContextReleased = errors.New("wgpu: context released")

	// ErrForeignObject is returned when an object of another platform or
	// driver is passed to a context.
	ErrForeignObject = errors.New("wgpu: object does not belong to this platform")

	// ErrSpecialization is wrapped by every specialization constant error.
	ErrSpecialization = errors.New("wgpu: specialization failed")
)
