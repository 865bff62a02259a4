package rtdriver

// #include "proc.h"
import "C"

import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

// commandBuffer implements rtutils.CommandBuffer.
type commandBuffer struct {
	d   *Driver
	cmd C.VkCommandBuffer
}

func (c *commandBuffer) BuildAccelerationStructure(info rtutils.BuildGeometryInfo, buildRange rtutils.BuildRangeInfo) error {
	if _, ok := c.d.accels[info.Dst]; !ok {
		return errors.Newf("cmdBuildAccelerationStructures: unknown destination %d", info.Dst)
	}

	allocator := cgoparam.GetAlloc()
	defer cgoparam.ReturnAlloc(allocator)

	buildInfo := c.d.buildGeometryInfo(allocator, info)

	rangeInfo := (*C.VkAccelerationStructureBuildRangeInfoKHR)(allocator.Malloc(int(unsafe.Sizeof(C.VkAccelerationStructureBuildRangeInfoKHR{}))))
	*rangeInfo = C.VkAccelerationStructureBuildRangeInfoKHR{
		primitiveCount:  C.uint32_t(buildRange.PrimitiveCount),
		primitiveOffset: C.uint32_t(buildRange.PrimitiveOffset),
		firstVertex:     C.uint32_t(buildRange.FirstVertex),
		transformOffset: C.uint32_t(buildRange.TransformOffset),
	}

	C.rtCmdBuildAccelerationStructure(c.cmd, buildInfo, rangeInfo)
	return nil
}

func (d *Driver) beginSingleTimeCommands() (core1_0.CommandBuffer, error) {
	buffers, _, err := d.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, err
	}

	buffer := buffers[0]
	_, err = d.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		d.deviceDriver.FreeCommandBuffers(buffer)
		return core1_0.CommandBuffer{}, err
	}
	return buffer, nil
}

func (d *Driver) endSingleTimeCommands(buffer core1_0.CommandBuffer) error {
	defer d.deviceDriver.FreeCommandBuffers(buffer)

	_, err := d.deviceDriver.EndCommandBuffer(buffer)
	if err != nil {
		return err
	}

	_, err = d.deviceDriver.QueueSubmit(d.queue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return err
	}

	_, err = d.deviceDriver.QueueWaitIdle(d.queue)
	return err
}

func (d *Driver) SubmitOneShot(record func(cmd rtutils.CommandBuffer) error) error {
	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return errors.Wrap(err, "beginCommandBuffer")
	}

	err = record(&commandBuffer{
		d:   d,
		cmd: C.VkCommandBuffer(unsafe.Pointer(buffer.Handle())),
	})
	if err != nil {
		_, _ = d.deviceDriver.EndCommandBuffer(buffer)
		d.deviceDriver.FreeCommandBuffers(buffer)
		return err
	}

	return errors.Wrap(d.endSingleTimeCommands(buffer), "queueSubmit")
}

// RecordOneShot is SubmitOneShot for callers recording core vkngwrapper commands,
// such as image layout transitions.
func (d *Driver) RecordOneShot(record func(driver core1_0.DeviceDriver, buffer core1_0.CommandBuffer) error) error {
	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return errors.Wrap(err, "beginCommandBuffer")
	}

	err = record(d.deviceDriver, buffer)
	if err != nil {
		_, _ = d.deviceDriver.EndCommandBuffer(buffer)
		d.deviceDriver.FreeCommandBuffers(buffer)
		return err
	}

	return errors.Wrap(d.endSingleTimeCommands(buffer), "queueSubmit")
}
