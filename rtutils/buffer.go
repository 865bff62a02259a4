package rtutils

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Buffer is a device buffer bound to its own memory allocation.
type Buffer struct {
	device Device

	Handle  BufferHandle
	Memory  MemoryHandle
	Size    uint64
	Usage   BufferUsageFlags
	Address DeviceAddress
}

// FindMemoryType returns the lowest memory type index allowed by typeBits whose
// property flags include all of properties.
func FindMemoryType(types []MemoryType, typeBits uint32, properties MemoryPropertyFlags) (int, error) {
	for i, memoryType := range types {
		typeBit := uint32(1) << i

		if (typeBits&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrUnsatisfiableMemory, "type bits %#x, properties %#x", typeBits, uint32(properties))
}

// NewBuffer creates a buffer of size bytes, binds memory matching memoryProperty and,
// if data is not nil, uploads it. data must hold exactly size bytes and memoryProperty
// must then include host visible and host coherent. When usage contains
// BufferUsageShaderDeviceAddress the buffer's device address is queried and stored.
func NewBuffer(device Device, size uint64, usage BufferUsageFlags, memoryProperty MemoryPropertyFlags, data []byte) (*Buffer, error) {
	if size == 0 {
		return nil, errors.New("createBuffer: size must be positive")
	}
	if data != nil && uint64(len(data)) != size {
		return nil, errors.Newf("createBuffer: data holds %d bytes, buffer size is %d", len(data), size)
	}

	handle, err := device.CreateBuffer(size, usage)
	if err != nil {
		return nil, errors.Wrap(err, "createBuffer")
	}
	b := &Buffer{device: device, Handle: handle, Size: size, Usage: usage}

	requirements := device.BufferMemoryRequirements(handle)
	memoryType, err := FindMemoryType(device.MemoryTypes(), requirements.MemoryTypeBits, memoryProperty)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "createBuffer")
	}

	addressable := usage&BufferUsageShaderDeviceAddress != 0
	b.Memory, err = device.AllocateMemory(requirements.Size, memoryType, addressable)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "allocateMemory")
	}

	err = device.BindBufferMemory(handle, b.Memory, 0)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "bindBufferMemory")
	}

	if data != nil {
		err = b.Write(data)
		if err != nil {
			b.Destroy()
			return nil, err
		}
	}

	if addressable {
		b.Address = device.BufferDeviceAddress(handle)
		if b.Address == 0 {
			b.Destroy()
			return nil, errors.New("getBufferDeviceAddress: device returned a null address")
		}
	}

	logrus.WithFields(logrus.Fields{
		"size":       size,
		"usage":      usage,
		"memoryType": memoryType,
		"address":    b.Address,
	}).Debug("created buffer")

	return b, nil
}

// Write copies data to the start of the buffer through a temporary mapping.
func (b *Buffer) Write(data []byte) error {
	if uint64(len(data)) > b.Size {
		return errors.Newf("writeBuffer: %d bytes do not fit in a %d byte buffer", len(data), b.Size)
	}

	mapped, err := b.device.MapMemory(b.Memory, 0, b.Size)
	if err != nil {
		return errors.Wrap(err, "mapMemory")
	}
	defer b.device.UnmapMemory(b.Memory)

	copy(mapped, data)
	return nil
}

// Read returns a copy of the buffer's contents. The memory must be host visible.
func (b *Buffer) Read() ([]byte, error) {
	mapped, err := b.device.MapMemory(b.Memory, 0, b.Size)
	if err != nil {
		return nil, errors.Wrap(err, "mapMemory")
	}
	defer b.device.UnmapMemory(b.Memory)

	out := make([]byte, b.Size)
	copy(out, mapped)
	return out, nil
}

// Destroy releases the buffer and then its memory. It is safe to call on a nil or
// already destroyed buffer.
func (b *Buffer) Destroy() {
	if b == nil || b.device == nil {
		return
	}

	b.Address = 0
	if b.Handle != 0 {
		b.device.DestroyBuffer(b.Handle)
	}
	if b.Memory != 0 {
		b.device.FreeMemory(b.Memory)
	}
	*b = Buffer{}
}
