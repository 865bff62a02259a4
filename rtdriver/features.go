package rtdriver

// #include "proc.h"
import "C"

import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_2"
)

const (
	ExtensionAccelerationStructure  = "VK_KHR_acceleration_structure"
	ExtensionRayTracingPipeline     = "VK_KHR_ray_tracing_pipeline"
	ExtensionPipelineLibrary        = "VK_KHR_pipeline_library"
	ExtensionDeferredHostOperations = "VK_KHR_deferred_host_operations"
	ExtensionBufferDeviceAddress    = "VK_KHR_buffer_device_address"
)

// DeviceExtensions must all be enabled on the logical device passed to New.
var DeviceExtensions = []string{
	ExtensionPipelineLibrary,
	ExtensionRayTracingPipeline,
	ExtensionAccelerationStructure,
	ExtensionDeferredHostOperations,
	ExtensionBufferDeviceAddress,
}

// MissingExtensions returns the members of DeviceExtensions absent from available.
func MissingExtensions[V any](available map[string]V) []string {
	var missing []string
	for _, name := range DeviceExtensions {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// FeatureChain enables buffer device addresses, acceleration structures and ray
// tracing pipelines when chained into a core1_0.DeviceCreateInfo.
func FeatureChain() common.Options {
	return core1_2.PhysicalDeviceBufferDeviceAddressFeatures{
		BufferDeviceAddress: true,
		NextOptions:         common.NextOptions{Next: RayTracingFeatures{}},
	}
}

// RayTracingFeatures enables the accelerationStructure and rayTracingPipeline
// features.
type RayTracingFeatures struct {
	common.NextOptions
}

func (o RayTracingFeatures) PopulateCPointer(allocator *cgoparam.Allocator, preallocatedPointer unsafe.Pointer, next unsafe.Pointer) (unsafe.Pointer, error) {
	if preallocatedPointer == nil {
		preallocatedPointer = allocator.Malloc(int(unsafe.Sizeof(C.VkPhysicalDeviceAccelerationStructureFeaturesKHR{})))
	}

	pipelineFeatures := (*C.VkPhysicalDeviceRayTracingPipelineFeaturesKHR)(allocator.Malloc(int(unsafe.Sizeof(C.VkPhysicalDeviceRayTracingPipelineFeaturesKHR{}))))
	*pipelineFeatures = C.VkPhysicalDeviceRayTracingPipelineFeaturesKHR{
		sType:              C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_FEATURES_KHR,
		pNext:              next,
		rayTracingPipeline: C.VK_TRUE,
	}

	accelFeatures := (*C.VkPhysicalDeviceAccelerationStructureFeaturesKHR)(preallocatedPointer)
	*accelFeatures = C.VkPhysicalDeviceAccelerationStructureFeaturesKHR{
		sType:                 C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR,
		pNext:                 unsafe.Pointer(pipelineFeatures),
		accelerationStructure: C.VK_TRUE,
	}

	return preallocatedPointer, nil
}
