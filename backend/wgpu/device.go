package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func init() {
	Register(BackendNoop, NewNoopPlatform)
}

// NewNoopPlatform creates a platform on the HAL noop backend. Shaders are
// still compiled to SPIR-V; pipeline creation succeeds without a GPU.
func NewNoopPlatform(opts ...Option) (*Platform, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create noop instance: %w", err)
	}
	return openPlatform(instance, opts)
}

// NewPlatformFromProvider wraps the device of a host application.
//
// The provider must expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. When it also implements
// gpucontext.DeviceProvider, its surface format becomes the default color
// target format. The device remains owned by the provider.
func NewPlatformFromProvider(provider any, opts ...Option) (*Platform, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, _ := hp.HalQueue().(hal.Queue)

	dp, isDeviceProvider := provider.(gpucontext.DeviceProvider)
	if isDeviceProvider {
		if f := dp.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			opts = append([]Option{WithSurfaceFormat(f)}, opts...)
		}
	}
	p, err := NewPlatform(device, queue, opts...)
	if err != nil {
		return nil, err
	}
	if isDeviceProvider {
		info := dp.AdapterInfo()
		p.info = AdapterInfo{Name: info.Name, DeviceType: info.Type.String()}
	}
	return p, nil
}

// openPlatform opens a device on the best adapter of instance. The platform
// owns both the device and the instance.
func openPlatform(instance hal.Instance, opts []Option) (*Platform, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := selectAdapter(adapters)
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	p := newPlatform(openDev.Device, openDev.Queue, opts)
	p.instance = instance
	p.info = AdapterInfo{
		Name:       selected.Info.Name,
		Vendor:     selected.Info.Vendor,
		Driver:     selected.Info.Driver,
		DeviceType: selected.Info.DeviceType.String(),
		Backend:    selected.Info.Backend.String(),
	}
	slogger().Info("wgpu: device opened",
		"adapter", p.info.Name, "type", p.info.DeviceType, "backend", p.info.Backend)
	return p, nil
}

// selectAdapter prefers a discrete or integrated GPU over software adapters.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}
