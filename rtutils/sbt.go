package rtutils

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// AlignUp rounds size up to a multiple of alignment, which must be a power of two.
func AlignUp(size, alignment uint32) uint32 {
	return (size + alignment - 1) &^ (alignment - 1)
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// SpreadHandles copies groupCount tightly packed handles of handleSize bytes into dst
// at a stride of len(dst)/groupCount.
func SpreadHandles(dst, packed []byte, groupCount, handleSize uint32) error {
	if groupCount == 0 {
		return nil
	}
	stride := uint32(len(dst)) / groupCount
	if stride < handleSize {
		return errors.Newf("stride %d is smaller than handle size %d", stride, handleSize)
	}
	if uint32(len(packed)) < groupCount*handleSize {
		return errors.Newf("%d packed bytes cannot hold %d handles of %d bytes", len(packed), groupCount, handleSize)
	}

	for i := uint32(0); i < groupCount; i++ {
		copy(dst[i*stride:i*stride+handleSize], packed[i*handleSize:(i+1)*handleSize])
	}
	return nil
}

// StridedRegion is one SBT region as consumed by a trace rays command.
type StridedRegion struct {
	Address DeviceAddress
	Stride  uint64
	Size    uint64
}

// ShaderBindingTable holds one buffer per shader group, each containing that group's
// handle at offset 0.
type ShaderBindingTable struct {
	Raygen *Buffer
	Miss   *Buffer
	Hit    *Buffer

	HandleSize        uint32
	HandleSizeAligned uint32
}

const sbtUsage = BufferUsageShaderBindingTable | BufferUsageTransferSrc | BufferUsageShaderDeviceAddress

// NewShaderBindingTable fetches the pipeline's group handles and copies each of the
// raygen, miss and closest hit handles into its own buffer.
func NewShaderBindingTable(device Device, pipeline *RayTracingPipeline) (*ShaderBindingTable, error) {
	props := device.RayTracingProperties()
	handleSize := props.ShaderGroupHandleSize
	if handleSize == 0 {
		return nil, errors.Wrap(ErrHandleQueryFailed, "device reports a zero shader group handle size")
	}
	if !isPowerOfTwo(props.ShaderGroupHandleAlignment) {
		return nil, errors.Wrapf(ErrHandleQueryFailed, "shader group handle alignment %d is not a power of two", props.ShaderGroupHandleAlignment)
	}
	if pipeline.GroupCount < GroupCount {
		return nil, errors.Wrapf(ErrHandleQueryFailed, "pipeline has %d groups, need %d", pipeline.GroupCount, GroupCount)
	}

	handleSizeAligned := AlignUp(handleSize, props.ShaderGroupHandleAlignment)
	groupCount := pipeline.GroupCount
	storage := make([]byte, groupCount*handleSizeAligned)

	err := device.RayTracingShaderGroupHandles(pipeline.Pipeline, 0, groupCount, storage)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "getRayTracingShaderGroupHandles"), ErrHandleQueryFailed)
	}

	logrus.WithFields(logrus.Fields{
		"handleSize":        handleSize,
		"handleAlignment":   props.ShaderGroupHandleAlignment,
		"handleSizeAligned": handleSizeAligned,
		"groups":            groupCount,
	}).Debug("fetched shader group handles")

	handle := func(group int) []byte {
		offset := uint32(group) * handleSizeAligned
		return storage[offset : offset+handleSize]
	}

	sbt := &ShaderBindingTable{
		HandleSize:        handleSize,
		HandleSizeAligned: handleSizeAligned,
	}

	hostVisible := MemoryPropertyHostVisible | MemoryPropertyHostCoherent
	sbt.Raygen, err = NewBuffer(device, uint64(handleSize), sbtUsage, hostVisible, handle(GroupRaygen))
	if err != nil {
		return nil, errors.Wrap(err, "create raygen SBT buffer")
	}

	sbt.Miss, err = NewBuffer(device, uint64(handleSize), sbtUsage, hostVisible, handle(GroupMiss))
	if err != nil {
		sbt.Destroy()
		return nil, errors.Wrap(err, "create miss SBT buffer")
	}

	sbt.Hit, err = NewBuffer(device, uint64(handleSize), sbtUsage, hostVisible, handle(GroupClosestHit))
	if err != nil {
		sbt.Destroy()
		return nil, errors.Wrap(err, "create hit SBT buffer")
	}

	return sbt, nil
}

func (s *ShaderBindingTable) region(b *Buffer) StridedRegion {
	size := uint64(s.HandleSizeAligned)
	if b.Size < size {
		size = b.Size
	}
	return StridedRegion{
		Address: b.Address,
		Stride:  uint64(s.HandleSizeAligned),
		Size:    size,
	}
}

// Regions returns the raygen, miss and hit regions in that order. Each region is
// strided at HandleSizeAligned but never sized past the end of its buffer, which
// holds a single HandleSize handle.
func (s *ShaderBindingTable) Regions() (raygen, miss, hit StridedRegion) {
	return s.region(s.Raygen), s.region(s.Miss), s.region(s.Hit)
}

func (s *ShaderBindingTable) Destroy() {
	if s == nil {
		return
	}

	s.Hit.Destroy()
	s.Miss.Destroy()
	s.Raygen.Destroy()
}
