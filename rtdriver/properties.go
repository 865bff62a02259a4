package rtdriver

// #include "proc.h"
import "C"

import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/vkngwrapper/core/v3/common"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

// rayTracingPipelineProperties is chained into core1_1.PhysicalDeviceProperties2 to
// read VkPhysicalDeviceRayTracingPipelinePropertiesKHR.
type rayTracingPipelineProperties struct {
	rtutils.RayTracingProperties

	common.NextOutData
}

func (o *rayTracingPipelineProperties) PopulateHeader(allocator *cgoparam.Allocator, preallocatedPointer unsafe.Pointer, next unsafe.Pointer) (unsafe.Pointer, error) {
	if preallocatedPointer == nil {
		preallocatedPointer = allocator.Malloc(int(unsafe.Sizeof(C.VkPhysicalDeviceRayTracingPipelinePropertiesKHR{})))
	}

	data := (*C.VkPhysicalDeviceRayTracingPipelinePropertiesKHR)(preallocatedPointer)
	data.sType = C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_PROPERTIES_KHR
	data.pNext = next

	return preallocatedPointer, nil
}

func (o *rayTracingPipelineProperties) PopulateOutData(cDataPointer unsafe.Pointer, helpers ...any) (next unsafe.Pointer, err error) {
	data := (*C.VkPhysicalDeviceRayTracingPipelinePropertiesKHR)(cDataPointer)

	o.ShaderGroupHandleSize = uint32(data.shaderGroupHandleSize)
	o.ShaderGroupHandleAlignment = uint32(data.shaderGroupHandleAlignment)
	o.ShaderGroupBaseAlignment = uint32(data.shaderGroupBaseAlignment)
	o.MaxRayRecursionDepth = uint32(data.maxRayRecursionDepth)

	return data.pNext, nil
}
