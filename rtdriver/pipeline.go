package rtdriver

// #include "proc.h"
import "C"

import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

func (d *Driver) CreateShaderModule(code []uint32) (rtutils.ShaderModuleHandle, error) {
	module, _, err := d.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return 0, err
	}

	h := rtutils.ShaderModuleHandle(d.newHandle())
	d.modules[h] = module
	return h, nil
}

func (d *Driver) DestroyShaderModule(module rtutils.ShaderModuleHandle) {
	mod, ok := d.modules[module]
	if !ok {
		return
	}
	d.deviceDriver.DestroyShaderModule(mod, nil)
	delete(d.modules, module)
}

func (d *Driver) CreateDescriptorPool(maxSets int, sizes []rtutils.DescriptorPoolSize, flags rtutils.DescriptorPoolCreateFlags) (rtutils.DescriptorPoolHandle, error) {
	var poolSizes []core1_0.DescriptorPoolSize
	for _, size := range sizes {
		poolSizes = append(poolSizes, core1_0.DescriptorPoolSize{
			Type:            core1_0.DescriptorType(size.Type),
			DescriptorCount: size.DescriptorCount,
		})
	}

	pool, _, err := d.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		Flags:     core1_0.DescriptorPoolCreateFlags(flags),
		MaxSets:   maxSets,
		PoolSizes: poolSizes,
	})
	if err != nil {
		return 0, err
	}

	h := rtutils.DescriptorPoolHandle(d.newHandle())
	d.pools[h] = pool
	return h, nil
}

func (d *Driver) DestroyDescriptorPool(pool rtutils.DescriptorPoolHandle) {
	p, ok := d.pools[pool]
	if !ok {
		return
	}
	d.deviceDriver.DestroyDescriptorPool(p, nil)
	delete(d.pools, pool)
}

func (d *Driver) CreateDescriptorSetLayout(bindings []rtutils.DescriptorSetLayoutBinding) (rtutils.DescriptorSetLayoutHandle, error) {
	var layoutBindings []core1_0.DescriptorSetLayoutBinding
	for _, binding := range bindings {
		layoutBindings = append(layoutBindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         binding.Binding,
			DescriptorType:  core1_0.DescriptorType(binding.DescriptorType),
			DescriptorCount: binding.DescriptorCount,

			StageFlags: core1_0.ShaderStageFlags(binding.StageFlags),
		})
	}

	layout, _, err := d.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: layoutBindings,
	})
	if err != nil {
		return 0, err
	}

	h := rtutils.DescriptorSetLayoutHandle(d.newHandle())
	d.setLayouts[h] = layout
	return h, nil
}

func (d *Driver) DestroyDescriptorSetLayout(layout rtutils.DescriptorSetLayoutHandle) {
	l, ok := d.setLayouts[layout]
	if !ok {
		return
	}
	d.deviceDriver.DestroyDescriptorSetLayout(l, nil)
	delete(d.setLayouts, layout)
}

func (d *Driver) AllocateDescriptorSet(pool rtutils.DescriptorPoolHandle, layout rtutils.DescriptorSetLayoutHandle) (rtutils.DescriptorSetHandle, error) {
	sets, _, err := d.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: d.pools[pool],
		SetLayouts:     []core1_0.DescriptorSetLayout{d.setLayouts[layout]},
	})
	if err != nil {
		return 0, err
	}

	h := rtutils.DescriptorSetHandle(d.newHandle())
	d.sets[h] = sets[0]
	return h, nil
}

func (d *Driver) FreeDescriptorSet(pool rtutils.DescriptorPoolHandle, set rtutils.DescriptorSetHandle) error {
	s, ok := d.sets[set]
	if !ok {
		return errors.Newf("freeDescriptorSets: unknown set %d", set)
	}
	delete(d.sets, set)

	_, err := d.deviceDriver.FreeDescriptorSets(s)
	return err
}

func (d *Driver) CreatePipelineLayout(setLayouts []rtutils.DescriptorSetLayoutHandle) (rtutils.PipelineLayoutHandle, error) {
	var layouts []core1_0.DescriptorSetLayout
	for _, layout := range setLayouts {
		layouts = append(layouts, d.setLayouts[layout])
	}

	pipelineLayout, _, err := d.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: layouts,
	})
	if err != nil {
		return 0, err
	}

	h := rtutils.PipelineLayoutHandle(d.newHandle())
	d.pipelineLayouts[h] = pipelineLayout
	return h, nil
}

func (d *Driver) DestroyPipelineLayout(layout rtutils.PipelineLayoutHandle) {
	l, ok := d.pipelineLayouts[layout]
	if !ok {
		return
	}
	d.deviceDriver.DestroyPipelineLayout(l, nil)
	delete(d.pipelineLayouts, layout)
}

func (d *Driver) CreateRayTracingPipeline(info rtutils.RayTracingPipelineCreateInfo) (rtutils.PipelineHandle, error) {
	layout, ok := d.pipelineLayouts[info.Layout]
	if !ok {
		return 0, errors.Newf("createRayTracingPipelines: unknown pipeline layout %d", info.Layout)
	}

	allocator := cgoparam.GetAlloc()
	defer cgoparam.ReturnAlloc(allocator)

	stagePtr := allocator.Malloc(len(info.Stages) * int(unsafe.Sizeof(C.VkPipelineShaderStageCreateInfo{})))
	stages := unsafe.Slice((*C.VkPipelineShaderStageCreateInfo)(stagePtr), len(info.Stages))
	for i, stage := range info.Stages {
		module, ok := d.modules[stage.Module]
		if !ok {
			return 0, errors.Newf("createRayTracingPipelines: stage %d has no shader module", i)
		}

		stages[i] = C.VkPipelineShaderStageCreateInfo{
			sType:  C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO,
			stage:  C.VkShaderStageFlagBits(stage.Stage),
			module: C.VkShaderModule(unsafe.Pointer(module.Handle())),
			pName:  (*C.char)(allocator.CString(stage.Name)),
		}
	}

	groupPtr := allocator.Malloc(len(info.Groups) * int(unsafe.Sizeof(C.VkRayTracingShaderGroupCreateInfoKHR{})))
	groups := unsafe.Slice((*C.VkRayTracingShaderGroupCreateInfoKHR)(groupPtr), len(info.Groups))
	for i, group := range info.Groups {
		groups[i] = C.VkRayTracingShaderGroupCreateInfoKHR{
			sType:              C.VK_STRUCTURE_TYPE_RAY_TRACING_SHADER_GROUP_CREATE_INFO_KHR,
			_type:              C.VkRayTracingShaderGroupTypeKHR(group.Type),
			generalShader:      C.uint32_t(group.General),
			closestHitShader:   C.uint32_t(group.ClosestHit),
			anyHitShader:       C.uint32_t(group.AnyHit),
			intersectionShader: C.uint32_t(group.Intersection),
		}
	}

	createInfo := (*C.VkRayTracingPipelineCreateInfoKHR)(allocator.Malloc(int(unsafe.Sizeof(C.VkRayTracingPipelineCreateInfoKHR{}))))
	*createInfo = C.VkRayTracingPipelineCreateInfoKHR{
		sType:                        C.VK_STRUCTURE_TYPE_RAY_TRACING_PIPELINE_CREATE_INFO_KHR,
		stageCount:                   C.uint32_t(len(info.Stages)),
		pStages:                      (*C.VkPipelineShaderStageCreateInfo)(stagePtr),
		groupCount:                   C.uint32_t(len(info.Groups)),
		pGroups:                      (*C.VkRayTracingShaderGroupCreateInfoKHR)(groupPtr),
		maxPipelineRayRecursionDepth: C.uint32_t(info.MaxPipelineRayRecursionDepth),
		layout:                       C.VkPipelineLayout(unsafe.Pointer(layout.Handle())),
	}

	var pipeline C.VkPipeline
	cache := C.VkPipelineCache(unsafe.Pointer(d.pipelineCache.Handle()))
	err := checkResult(C.rtCreateRayTracingPipeline(d.vkDevice, cache, createInfo, &pipeline))
	if err != nil {
		return 0, err
	}

	h := rtutils.PipelineHandle(d.newHandle())
	d.pipelines[h] = core1_0.InternalPipeline(d.device.Handle(), loader.VkPipeline(unsafe.Pointer(pipeline)), d.device.APIVersion())
	return h, nil
}

func (d *Driver) DestroyPipeline(pipeline rtutils.PipelineHandle) {
	p, ok := d.pipelines[pipeline]
	if !ok {
		return
	}
	d.deviceDriver.DestroyPipeline(p, nil)
	delete(d.pipelines, pipeline)
}

// RayTracingShaderGroupHandles fetches the handles tightly packed, then spreads
// them across data at len(data)/groupCount bytes apiece.
func (d *Driver) RayTracingShaderGroupHandles(pipeline rtutils.PipelineHandle, firstGroup, groupCount uint32, data []byte) error {
	p, ok := d.pipelines[pipeline]
	if !ok {
		return errors.Newf("getRayTracingShaderGroupHandles: unknown pipeline %d", pipeline)
	}
	if groupCount == 0 {
		return nil
	}

	handleSize := d.props.ShaderGroupHandleSize
	if handleSize == 0 {
		return errors.New("getRayTracingShaderGroupHandles: zero handle size")
	}
	packed := make([]byte, groupCount*handleSize)
	err := d.queryGroupHandles(p, firstGroup, groupCount, packed)
	if err != nil {
		return errors.Wrap(err, "getRayTracingShaderGroupHandles")
	}

	return rtutils.SpreadHandles(data, packed, groupCount, handleSize)
}

func (d *Driver) getShaderGroupHandles(pipeline core1_0.Pipeline, firstGroup, groupCount uint32, packed []byte) error {
	return checkResult(C.rtGetRayTracingShaderGroupHandles(d.vkDevice,
		C.VkPipeline(unsafe.Pointer(pipeline.Handle())),
		C.uint32_t(firstGroup), C.uint32_t(groupCount),
		C.size_t(len(packed)), unsafe.Pointer(&packed[0])))
}
