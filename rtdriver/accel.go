package rtdriver

// #include "proc.h"
import "C"

import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

// buildGeometryInfo lays info out in allocator memory. Triangle and instance data
// live in a union, so they are written from C.
func (d *Driver) buildGeometryInfo(allocator *cgoparam.Allocator, info rtutils.BuildGeometryInfo) *C.VkAccelerationStructureBuildGeometryInfoKHR {
	geometryCount := len(info.Geometries)
	geometryPtr := allocator.Malloc(geometryCount * int(unsafe.Sizeof(C.VkAccelerationStructureGeometryKHR{})))
	geometries := unsafe.Slice((*C.VkAccelerationStructureGeometryKHR)(geometryPtr), geometryCount)

	for i, geometry := range info.Geometries {
		out := &geometries[i]
		*out = C.VkAccelerationStructureGeometryKHR{
			sType: C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_KHR,
			flags: C.VkGeometryFlagsKHR(geometry.Flags),
		}

		switch geometry.Type {
		case rtutils.GeometryTypeTriangles:
			triangles := geometry.Triangles
			C.rtSetTriangles(out,
				C.VkFormat(triangles.VertexFormat),
				C.VkDeviceAddress(triangles.VertexData),
				C.VkDeviceSize(triangles.VertexStride),
				C.uint32_t(triangles.MaxVertex),
				C.VkIndexType(triangles.IndexType),
				C.VkDeviceAddress(triangles.IndexData),
				C.VkDeviceAddress(triangles.TransformData))
		case rtutils.GeometryTypeInstances:
			C.rtSetInstances(out,
				vkBool(geometry.Instances.ArrayOfPointers),
				C.VkDeviceAddress(geometry.Instances.Data))
		}
	}

	buildInfo := (*C.VkAccelerationStructureBuildGeometryInfoKHR)(allocator.Malloc(int(unsafe.Sizeof(C.VkAccelerationStructureBuildGeometryInfoKHR{}))))
	*buildInfo = C.VkAccelerationStructureBuildGeometryInfoKHR{
		sType:                    C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_GEOMETRY_INFO_KHR,
		_type:                    C.VkAccelerationStructureTypeKHR(info.Type),
		flags:                    C.VkBuildAccelerationStructureFlagsKHR(info.Flags),
		mode:                     C.VkBuildAccelerationStructureModeKHR(info.Mode),
		dstAccelerationStructure: d.accels[info.Dst],
		geometryCount:            C.uint32_t(geometryCount),
		pGeometries:              (*C.VkAccelerationStructureGeometryKHR)(geometryPtr),
	}
	C.rtSetScratch(buildInfo, C.VkDeviceAddress(info.ScratchData))

	return buildInfo
}

func (d *Driver) AccelerationStructureBuildSizes(info rtutils.BuildGeometryInfo, maxPrimitiveCounts []uint32) rtutils.BuildSizes {
	allocator := cgoparam.GetAlloc()
	defer cgoparam.ReturnAlloc(allocator)

	buildInfo := d.buildGeometryInfo(allocator, info)

	countPtr := allocator.Malloc(len(maxPrimitiveCounts) * int(unsafe.Sizeof(C.uint32_t(0))))
	counts := unsafe.Slice((*C.uint32_t)(countPtr), len(maxPrimitiveCounts))
	for i, count := range maxPrimitiveCounts {
		counts[i] = C.uint32_t(count)
	}

	var sizes C.VkAccelerationStructureBuildSizesInfoKHR
	C.rtGetAccelerationStructureBuildSizes(d.vkDevice, buildInfo, (*C.uint32_t)(countPtr), &sizes)

	return rtutils.BuildSizes{
		AccelerationStructureSize: uint64(sizes.accelerationStructureSize),
		UpdateScratchSize:         uint64(sizes.updateScratchSize),
		BuildScratchSize:          uint64(sizes.buildScratchSize),
	}
}

func (d *Driver) CreateAccelerationStructure(buffer rtutils.BufferHandle, offset, size uint64, asType rtutils.AccelerationStructureType) (rtutils.AccelerationStructureHandle, error) {
	buf, ok := d.buffers[buffer]
	if !ok {
		return 0, errors.Newf("createAccelerationStructure: unknown buffer %d", buffer)
	}

	createInfo := C.VkAccelerationStructureCreateInfoKHR{
		sType:  C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_CREATE_INFO_KHR,
		buffer: C.VkBuffer(unsafe.Pointer(buf.Handle())),
		offset: C.VkDeviceSize(offset),
		size:   C.VkDeviceSize(size),
		_type:  C.VkAccelerationStructureTypeKHR(asType),
	}

	var as C.VkAccelerationStructureKHR
	err := checkResult(C.rtCreateAccelerationStructure(d.vkDevice, &createInfo, &as))
	if err != nil {
		return 0, err
	}

	h := rtutils.AccelerationStructureHandle(d.newHandle())
	d.accels[h] = as
	return h, nil
}

func (d *Driver) AccelerationStructureDeviceAddress(as rtutils.AccelerationStructureHandle) rtutils.DeviceAddress {
	accel, ok := d.accels[as]
	if !ok {
		return 0
	}
	return rtutils.DeviceAddress(C.rtGetAccelerationStructureDeviceAddress(d.vkDevice, accel))
}

func (d *Driver) DestroyAccelerationStructure(as rtutils.AccelerationStructureHandle) {
	accel, ok := d.accels[as]
	if !ok {
		return
	}
	C.rtDestroyAccelerationStructure(d.vkDevice, accel)
	delete(d.accels, as)
}
