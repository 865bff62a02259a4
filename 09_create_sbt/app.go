package main

import (
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/rtexamples/config"
	"github.com/vkngwrapper/rtexamples/rtdriver"
	"github.com/vkngwrapper/rtexamples/rtutils"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

type HelloRayTracingApplication struct {
	cfg    *config.Config
	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	physicalDevice   core1_0.PhysicalDevice
	queueFamilyIndex int
	queue            core1_0.Queue
	commandPool      core1_0.CommandPool
	rt               *rtdriver.Driver

	swapchainExtension   khr_swapchain.ExtensionDriver
	swapchain            khr_swapchain.Swapchain
	swapchainImages      []core1_0.Image
	swapchainImageFormat core1_0.Format
	swapchainExtent      core1_0.Extent2D
	swapchainImageViews  []core1_0.ImageView

	bottomLevelAS  *rtutils.AccelStruct
	topLevelAS     *rtutils.AccelStruct
	shaders        *rtutils.ShaderRegistry
	descriptors    *rtutils.DescriptorPlan
	pipeline       *rtutils.RayTracingPipeline
	shaderBindings *rtutils.ShaderBindingTable
}

func (app *HelloRayTracingApplication) Run() error {
	err := app.initWindow()
	if err != nil {
		return err
	}
	defer app.cleanup()

	err = app.initVulkan()
	if err != nil {
		return err
	}

	return app.mainLoop()
}

func (app *HelloRayTracingApplication) initWindow() error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}

	window, err := sdl.CreateWindow("Vulkan", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(app.cfg.Width), int32(app.cfg.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_BORDERLESS)
	if err != nil {
		return err
	}
	app.window = window

	app.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return err
	}

	return nil
}

type setupStep struct {
	name string
	run  func() error
}

func (app *HelloRayTracingApplication) initVulkan() error {
	steps := []setupStep{
		{"createInstance", app.createInstance},
		{"setupDebugMessenger", app.setupDebugMessenger},
		{"createSurface", app.createSurface},
		{"pickPhysicalDevice", app.pickPhysicalDevice},
		{"createLogicalDevice", app.createLogicalDevice},
		{"createCommandPool", app.createCommandPool},
		{"createRayTracingDriver", app.createRayTracingDriver},
		{"createSwapchain", app.createSwapchain},
		{"createImageViews", app.createImageViews},
		{"createBottomLevelAS", app.createBottomLevelAS},
		{"createTopLevelAS", app.createTopLevelAS},
		{"prepareShaders", app.prepareShaders},
		{"createDescriptorPlan", app.createDescriptorPlan},
		{"createRayTracingPipeline", app.createRayTracingPipeline},
		{"createShaderBindingTable", app.createShaderBindingTable},
	}

	return runSteps(steps)
}

// runSteps stops at the first failing step and names it in the returned error.
func runSteps(steps []setupStep) error {
	for _, step := range steps {
		start := hrtime.Now()
		err := step.run()
		if err != nil {
			return errors.Wrap(err, step.name)
		}
		logrus.WithField("elapsed", hrtime.Now()-start).Info(step.name)
	}

	return nil
}

func (app *HelloRayTracingApplication) mainLoop() error {
appLoop:
	for true {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.KeyboardEvent:
				if e.Keysym.Sym == sdl.K_ESCAPE {
					break appLoop
				}
			}
		}
		sdl.Delay(16)
	}

	_, err := app.deviceDriver.DeviceWaitIdle()
	return err
}

func (app *HelloRayTracingApplication) cleanup() {
	if app.shaderBindings != nil {
		app.shaderBindings.Destroy()
	}

	if app.pipeline != nil {
		app.pipeline.Destroy()
	}

	if app.descriptors != nil {
		app.descriptors.Destroy()
	}

	if app.shaders != nil {
		app.shaders.Destroy()
	}

	if app.topLevelAS != nil {
		app.topLevelAS.Destroy()
	}

	if app.bottomLevelAS != nil {
		app.bottomLevelAS.Destroy()
	}

	if app.rt != nil {
		if app.cfg.PipelineCache != "" {
			if err := app.rt.SavePipelineCache(app.cfg.PipelineCache); err != nil {
				logrus.WithError(err).Warn("pipeline cache not saved")
			}
		}
		app.rt.Destroy()
	}

	for _, imageView := range app.swapchainImageViews {
		app.deviceDriver.DestroyImageView(imageView, nil)
	}
	app.swapchainImageViews = nil

	if app.swapchain.Initialized() {
		app.swapchainExtension.DestroySwapchain(app.swapchain, nil)
	}

	if app.commandPool.Initialized() {
		app.deviceDriver.DestroyCommandPool(app.commandPool, nil)
	}

	if app.deviceDriver != nil {
		app.deviceDriver.DestroyDevice(nil)
	}

	if app.surface.Initialized() {
		app.surfaceExtension.DestroySurface(app.surface, nil)
	}

	if app.debugMessenger.Initialized() {
		app.debugDriver.DestroyDebugUtilsMessenger(app.debugMessenger, nil)
	}

	if app.instanceDriver != nil {
		app.instanceDriver.DestroyInstance(nil)
	}

	if app.window != nil {
		app.window.Destroy()
	}
	sdl.Quit()
}
