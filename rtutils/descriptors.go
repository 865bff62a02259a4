package rtutils

import "github.com/cockroachdb/errors"

// RayTracingBindings is the set layout used by the raygen shader: the TLAS at binding
// 0 and the output image at binding 1.
var RayTracingBindings = []DescriptorSetLayoutBinding{
	{
		Binding:         0,
		DescriptorType:  DescriptorTypeAccelerationStructure,
		DescriptorCount: 1,
		StageFlags:      StageRaygen,
	},
	{
		Binding:         1,
		DescriptorType:  DescriptorTypeStorageImage,
		DescriptorCount: 1,
		StageFlags:      StageRaygen,
	},
}

// DescriptorPlan is a pool, a layout and the one set allocated from them. The set's
// contents are never written here.
type DescriptorPlan struct {
	device Device

	Pool   DescriptorPoolHandle
	Layout DescriptorSetLayoutHandle
	Set    DescriptorSetHandle
}

func NewDescriptorPlan(device Device) (*DescriptorPlan, error) {
	plan := &DescriptorPlan{device: device}

	var err error
	plan.Pool, err = device.CreateDescriptorPool(1, []DescriptorPoolSize{
		{Type: DescriptorTypeAccelerationStructure, DescriptorCount: 1},
		{Type: DescriptorTypeStorageImage, DescriptorCount: 1},
	}, DescriptorPoolCreateFreeDescriptorSet)
	if err != nil {
		return nil, errors.Wrap(err, "createDescriptorPool")
	}

	plan.Layout, err = device.CreateDescriptorSetLayout(RayTracingBindings)
	if err != nil {
		plan.Destroy()
		return nil, errors.Wrap(err, "createDescriptorSetLayout")
	}

	plan.Set, err = device.AllocateDescriptorSet(plan.Pool, plan.Layout)
	if err != nil {
		plan.Destroy()
		return nil, errors.Wrap(err, "allocateDescriptorSets")
	}

	return plan, nil
}

// Destroy frees the set, then the pool, then the layout.
func (p *DescriptorPlan) Destroy() {
	if p == nil || p.device == nil {
		return
	}

	if p.Set != 0 {
		_ = p.device.FreeDescriptorSet(p.Pool, p.Set)
	}
	if p.Pool != 0 {
		p.device.DestroyDescriptorPool(p.Pool)
	}
	if p.Layout != 0 {
		p.device.DestroyDescriptorSetLayout(p.Layout)
	}
	*p = DescriptorPlan{}
}
