package rtutils

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

const DefaultMaxRecursionDepth = 1

// RayTracingPipeline is a pipeline and the layout it was created against.
type RayTracingPipeline struct {
	device Device

	Layout     PipelineLayoutHandle
	Pipeline   PipelineHandle
	GroupCount uint32
}

// NewRayTracingPipeline creates a layout over setLayout (no push constants) and a ray
// tracing pipeline from the registry's stages and groups.
func NewRayTracingPipeline(device Device, setLayout DescriptorSetLayoutHandle, registry *ShaderRegistry, maxRecursionDepth uint32) (*RayTracingPipeline, error) {
	if len(registry.Groups) == 0 {
		return nil, errors.Mark(errors.New("createRayTracingPipeline: no shader groups"), ErrPipelineCreateFailed)
	}
	for i, stage := range registry.Stages {
		if stage.Module == 0 {
			return nil, errors.Mark(errors.Newf("createRayTracingPipeline: shader stage %d has no module", i), ErrPipelineCreateFailed)
		}
	}

	maxDepth := device.RayTracingProperties().MaxRayRecursionDepth
	if maxRecursionDepth > maxDepth {
		return nil, errors.Mark(
			errors.Newf("createRayTracingPipeline: recursion depth %d exceeds device maximum %d", maxRecursionDepth, maxDepth),
			ErrPipelineCreateFailed)
	}

	layout, err := device.CreatePipelineLayout([]DescriptorSetLayoutHandle{setLayout})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "createPipelineLayout"), ErrPipelineCreateFailed)
	}

	pipeline, err := device.CreateRayTracingPipeline(RayTracingPipelineCreateInfo{
		Stages:                       registry.Stages,
		Groups:                       registry.Groups,
		MaxPipelineRayRecursionDepth: maxRecursionDepth,
		Layout:                       layout,
	})
	if err != nil {
		device.DestroyPipelineLayout(layout)
		return nil, errors.Mark(errors.Wrap(err, "createRayTracingPipeline"), ErrPipelineCreateFailed)
	}

	logrus.WithFields(logrus.Fields{
		"stages":         len(registry.Stages),
		"groups":         len(registry.Groups),
		"recursionDepth": maxRecursionDepth,
	}).Debug("created ray tracing pipeline")

	return &RayTracingPipeline{
		device:     device,
		Layout:     layout,
		Pipeline:   pipeline,
		GroupCount: uint32(len(registry.Groups)),
	}, nil
}

// Destroy releases the pipeline before its layout.
func (p *RayTracingPipeline) Destroy() {
	if p == nil || p.device == nil {
		return
	}

	if p.Pipeline != 0 {
		p.device.DestroyPipeline(p.Pipeline)
	}
	if p.Layout != 0 {
		p.device.DestroyPipelineLayout(p.Layout)
	}
	*p = RayTracingPipeline{}
}
