package main

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/rtexamples/rtdriver"
)

func (app *HelloRayTracingApplication) createLogicalDevice() error {
	extensionNames := []string{khr_swapchain.ExtensionName}
	extensionNames = append(extensionNames, rtdriver.DeviceExtensions...)

	// Makes this example compatible with vulkan portability, necessary to run on mobile & mac
	extensions, _, err := app.instanceDriver.EnumerateDeviceExtensionProperties(app.physicalDevice)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	device, _, err := app.instanceDriver.CreateDevice(app.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: app.queueFamilyIndex,
				QueuePriorities:  []float32{1.0},
			},
		},
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
		NextOptions:           common.NextOptions{Next: rtdriver.FeatureChain()},
	})
	if err != nil {
		return errors.Wrap(err, "createLogicalDevice")
	}

	app.deviceDriver, err = app.instanceDriver.BuildDeviceDriver(device)
	if err != nil {
		return errors.Wrap(err, "buildDeviceDriver")
	}

	app.queue = app.deviceDriver.GetQueue(app.queueFamilyIndex, 0)
	return nil
}

func (app *HelloRayTracingApplication) createCommandPool() error {
	pool, _, err := app.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: app.queueFamilyIndex,
	})
	if err != nil {
		return errors.Wrap(err, "createCommandPool")
	}
	app.commandPool = pool

	return nil
}

func (app *HelloRayTracingApplication) createRayTracingDriver() error {
	driver, err := rtdriver.New(app.instanceDriver, app.physicalDevice, app.deviceDriver, app.queue, app.commandPool)
	if err != nil {
		return err
	}
	app.rt = driver

	if app.cfg.PipelineCache != "" {
		return app.rt.LoadPipelineCache(app.cfg.PipelineCache)
	}
	return nil
}
