package rtdriver

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_1"
	"github.com/vkngwrapper/core/v3/core1_2"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

func (d *Driver) CreateBuffer(size uint64, usage rtutils.BufferUsageFlags) (rtutils.BufferHandle, error) {
	buffer, _, err := d.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        int(size),
		Usage:       core1_0.BufferUsageFlags(usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return 0, err
	}

	h := rtutils.BufferHandle(d.newHandle())
	d.buffers[h] = buffer
	return h, nil
}

func (d *Driver) BufferMemoryRequirements(buffer rtutils.BufferHandle) rtutils.MemoryRequirements {
	memRequirements := d.deviceDriver.GetBufferMemoryRequirements(d.buffers[buffer])
	return rtutils.MemoryRequirements{
		Size:           uint64(memRequirements.Size),
		Alignment:      uint64(memRequirements.Alignment),
		MemoryTypeBits: memRequirements.MemoryTypeBits,
	}
}

func (d *Driver) AllocateMemory(size uint64, memoryTypeIndex int, deviceAddress bool) (rtutils.MemoryHandle, error) {
	allocInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  int(size),
		MemoryTypeIndex: memoryTypeIndex,
	}
	if deviceAddress {
		allocInfo.NextOptions = common.NextOptions{Next: core1_1.MemoryAllocateFlagsInfo{
			Flags: core1_2.MemoryAllocateDeviceAddress,
		}}
	}

	memory, _, err := d.deviceDriver.AllocateMemory(nil, allocInfo)
	if err != nil {
		return 0, err
	}

	h := rtutils.MemoryHandle(d.newHandle())
	d.memories[h] = memory
	return h, nil
}

func (d *Driver) BindBufferMemory(buffer rtutils.BufferHandle, memory rtutils.MemoryHandle, offset uint64) error {
	_, err := d.deviceDriver.BindBufferMemory(d.buffers[buffer], d.memories[memory], int(offset))
	return err
}

func (d *Driver) MapMemory(memory rtutils.MemoryHandle, offset, size uint64) ([]byte, error) {
	mem, ok := d.memories[memory]
	if !ok {
		return nil, errors.Newf("mapMemory: unknown memory %d", memory)
	}

	memoryPtr, _, err := d.deviceDriver.MapMemory(mem, int(offset), int(size), 0)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(memoryPtr), size), nil
}

func (d *Driver) UnmapMemory(memory rtutils.MemoryHandle) {
	d.deviceDriver.UnmapMemory(d.memories[memory])
}

// BufferDeviceAddress is zero for unknown buffers or when the query fails.
func (d *Driver) BufferDeviceAddress(buffer rtutils.BufferHandle) rtutils.DeviceAddress {
	buf, ok := d.buffers[buffer]
	if !ok {
		return 0
	}

	address, err := d.deviceDriver.GetBufferDeviceAddress(core1_2.BufferDeviceAddressInfo{
		Buffer: buf,
	})
	if err != nil {
		return 0
	}
	return rtutils.DeviceAddress(address)
}

func (d *Driver) DestroyBuffer(buffer rtutils.BufferHandle) {
	buf, ok := d.buffers[buffer]
	if !ok {
		return
	}
	d.deviceDriver.DestroyBuffer(buf, nil)
	delete(d.buffers, buffer)
}

func (d *Driver) FreeMemory(memory rtutils.MemoryHandle) {
	mem, ok := d.memories[memory]
	if !ok {
		return
	}
	d.deviceDriver.FreeMemory(mem, nil)
	delete(d.memories, memory)
}
