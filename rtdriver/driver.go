// Package rtdriver implements rtutils.Device on top of a vkngwrapper device. Core
// objects go through vkngwrapper; the VK_KHR_acceleration_structure and
// VK_KHR_ray_tracing_pipeline entry points, which vkngwrapper does not expose, are
// loaded with vkGetDeviceProcAddr and called directly.
package rtdriver

// #cgo linux LDFLAGS: -lvulkan
// #cgo darwin LDFLAGS: -lvulkan
// #cgo windows LDFLAGS: -lvulkan-1
// #include "proc.h"
import "C"

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_1"
	"github.com/vkngwrapper/core/v3/core1_2"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

// Driver is a single-threaded rtutils.Device.
type Driver struct {
	deviceDriver core1_2.DeviceDriver
	device       core1_0.Device
	queue        core1_0.Queue
	commandPool  core1_0.CommandPool

	vkDevice C.VkDevice

	memoryTypes []rtutils.MemoryType
	props       rtutils.RayTracingProperties
	deviceName  string
	vendorID    uint32
	deviceID    uint32
	cacheUUID   uuid.UUID

	pipelineCache core1_0.PipelineCache

	// queryGroupHandles writes groupCount tightly packed handles into packed.
	queryGroupHandles func(pipeline core1_0.Pipeline, firstGroup, groupCount uint32, packed []byte) error

	nextHandle      uint64
	buffers         map[rtutils.BufferHandle]core1_0.Buffer
	memories        map[rtutils.MemoryHandle]core1_0.DeviceMemory
	accels          map[rtutils.AccelerationStructureHandle]C.VkAccelerationStructureKHR
	modules         map[rtutils.ShaderModuleHandle]core1_0.ShaderModule
	pools           map[rtutils.DescriptorPoolHandle]core1_0.DescriptorPool
	setLayouts      map[rtutils.DescriptorSetLayoutHandle]core1_0.DescriptorSetLayout
	sets            map[rtutils.DescriptorSetHandle]core1_0.DescriptorSet
	pipelineLayouts map[rtutils.PipelineLayoutHandle]core1_0.PipelineLayout
	pipelines       map[rtutils.PipelineHandle]core1_0.Pipeline
}

var _ rtutils.Device = (*Driver)(nil)

func newDriver(device core1_0.Device, deviceDriver core1_2.DeviceDriver, queue core1_0.Queue, commandPool core1_0.CommandPool) *Driver {
	d := &Driver{
		deviceDriver: deviceDriver,
		device:       device,
		queue:        queue,
		commandPool:  commandPool,
		vkDevice:     C.VkDevice(unsafe.Pointer(device.Handle())),

		nextHandle:      1,
		buffers:         map[rtutils.BufferHandle]core1_0.Buffer{},
		memories:        map[rtutils.MemoryHandle]core1_0.DeviceMemory{},
		accels:          map[rtutils.AccelerationStructureHandle]C.VkAccelerationStructureKHR{},
		modules:         map[rtutils.ShaderModuleHandle]core1_0.ShaderModule{},
		pools:           map[rtutils.DescriptorPoolHandle]core1_0.DescriptorPool{},
		setLayouts:      map[rtutils.DescriptorSetLayoutHandle]core1_0.DescriptorSetLayout{},
		sets:            map[rtutils.DescriptorSetHandle]core1_0.DescriptorSet{},
		pipelineLayouts: map[rtutils.PipelineLayoutHandle]core1_0.PipelineLayout{},
		pipelines:       map[rtutils.PipelineHandle]core1_0.Pipeline{},
	}
	d.queryGroupHandles = d.getShaderGroupHandles
	return d
}

// New wraps a Vulkan 1.2 logical device created with DeviceExtensions enabled and
// FeatureChain chained into its create info. One-shot command buffers are allocated
// from commandPool and submitted to queue.
func New(instanceDriver core1_0.CoreInstanceDriver, physicalDevice core1_0.PhysicalDevice, deviceDriver core1_0.DeviceDriver, queue core1_0.Queue, commandPool core1_0.CommandPool) (*Driver, error) {
	instanceDriver11, ok := instanceDriver.(core1_1.CoreInstanceDriver)
	if !ok {
		return nil, errors.Wrap(rtutils.ErrDeviceUnsupported, "instance is older than Vulkan 1.1")
	}
	deviceDriver12, ok := deviceDriver.(core1_2.DeviceDriver)
	if !ok {
		return nil, errors.Wrap(rtutils.ErrDeviceUnsupported, "device is older than Vulkan 1.2")
	}

	d := newDriver(deviceDriver.Device(), deviceDriver12, queue, commandPool)

	if missing := C.rtLoadDeviceProcs(d.vkDevice); missing != nil {
		return nil, errors.Wrapf(rtutils.ErrDeviceUnsupported, "device does not provide %s", C.GoString(missing))
	}

	memProperties := instanceDriver.GetPhysicalDeviceMemoryProperties(physicalDevice)
	for _, memoryType := range memProperties.MemoryTypes {
		d.memoryTypes = append(d.memoryTypes, rtutils.MemoryType{
			PropertyFlags: rtutils.MemoryPropertyFlags(memoryType.PropertyFlags),
			HeapIndex:     memoryType.HeapIndex,
		})
	}

	rtProperties := &rayTracingPipelineProperties{}
	properties := core1_1.PhysicalDeviceProperties2{
		NextOutData: common.NextOutData{Next: rtProperties},
	}
	err := instanceDriver11.GetPhysicalDeviceProperties2(physicalDevice, &properties)
	if err != nil {
		return nil, errors.Wrap(err, "getPhysicalDeviceProperties2")
	}
	d.deviceName = properties.Properties.DriverName
	d.vendorID = properties.Properties.VendorID
	d.deviceID = properties.Properties.DeviceID
	d.cacheUUID = properties.Properties.PipelineCacheUUID
	d.props = rtProperties.RayTracingProperties

	logrus.WithFields(logrus.Fields{
		"device":            d.deviceName,
		"handleSize":        d.props.ShaderGroupHandleSize,
		"handleAlignment":   d.props.ShaderGroupHandleAlignment,
		"baseAlignment":     d.props.ShaderGroupBaseAlignment,
		"maxRecursionDepth": d.props.MaxRayRecursionDepth,
	}).Info("ray tracing properties")

	return d, nil
}

func (d *Driver) MemoryTypes() []rtutils.MemoryType { return d.memoryTypes }

func (d *Driver) RayTracingProperties() rtutils.RayTracingProperties { return d.props }

func (d *Driver) DeviceName() string { return d.deviceName }

func (d *Driver) newHandle() uint64 {
	h := d.nextHandle
	d.nextHandle++
	return h
}

// Destroy releases anything still registered with the driver, then the pipeline
// cache. Each leftover object is logged, since a clean shutdown leaves nothing behind.
func (d *Driver) Destroy() {
	leaked := 0
	for h := range d.pipelines {
		d.DestroyPipeline(h)
		leaked++
	}
	for h := range d.pipelineLayouts {
		d.DestroyPipelineLayout(h)
		leaked++
	}
	for h := range d.pools {
		d.DestroyDescriptorPool(h)
		leaked++
	}
	clear(d.sets)
	for h := range d.setLayouts {
		d.DestroyDescriptorSetLayout(h)
		leaked++
	}
	for h := range d.modules {
		d.DestroyShaderModule(h)
		leaked++
	}
	for h := range d.accels {
		d.DestroyAccelerationStructure(h)
		leaked++
	}
	for h := range d.buffers {
		d.DestroyBuffer(h)
		leaked++
	}
	for h := range d.memories {
		d.FreeMemory(h)
		leaked++
	}

	if d.pipelineCache.Initialized() {
		d.deviceDriver.DestroyPipelineCache(d.pipelineCache, nil)
		d.pipelineCache = core1_0.PipelineCache{}
	}

	if leaked > 0 {
		logrus.WithField("objects", leaked).Warn("ray tracing driver released leaked objects")
	}
}

func checkResult(res C.VkResult) error {
	if res == C.VK_SUCCESS {
		return nil
	}
	return errors.Newf("vulkan: %v", common.VkResult(res))
}

func vkBool(b bool) C.VkBool32 {
	if b {
		return C.VK_TRUE
	}
	return C.VK_FALSE
}
