package main

import (
	"os"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

//go:generate glslc --target-env=vulkan1.2 -o shaders/raygen.rgen.spv shaders/raygen.rgen
//go:generate glslc --target-env=vulkan1.2 -o shaders/miss.rmiss.spv shaders/miss.rmiss
//go:generate glslc --target-env=vulkan1.2 -o shaders/closesthit.rchit.spv shaders/closesthit.rchit

func (app *HelloRayTracingApplication) prepareShaders() error {
	app.shaders = rtutils.NewShaderRegistry(app.rt, os.DirFS(app.cfg.ShaderDir), rtutils.GroupCount)
	return app.shaders.AddShaders(rtutils.DefaultShaders)
}

func (app *HelloRayTracingApplication) createDescriptorPlan() error {
	var err error
	app.descriptors, err = rtutils.NewDescriptorPlan(app.rt)
	return err
}

func (app *HelloRayTracingApplication) createRayTracingPipeline() error {
	var err error
	app.pipeline, err = rtutils.NewRayTracingPipeline(app.rt, app.descriptors.Layout, app.shaders, rtutils.DefaultMaxRecursionDepth)
	return err
}
