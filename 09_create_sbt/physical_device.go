package main

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/rtexamples/rtdriver"
	"github.com/vkngwrapper/rtexamples/rtutils"
)

type SwapChainSupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (app *HelloRayTracingApplication) pickPhysicalDevice() error {
	physicalDevices, _, err := app.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		if app.isDeviceSuitable(device) {
			app.physicalDevice = device
			break
		}
	}

	if !app.physicalDevice.Initialized() {
		return errors.Wrapf(rtutils.ErrDeviceUnsupported, "pickPhysicalDevice: none of %d devices supports ray tracing", len(physicalDevices))
	}

	app.queueFamilyIndex, err = app.findGeneralQueueFamily(app.physicalDevice)
	return err
}

func (app *HelloRayTracingApplication) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	if _, err := app.findGeneralQueueFamily(device); err != nil {
		return false
	}

	if !app.checkDeviceExtensionSupport(device) {
		return false
	}

	swapChainSupport, err := app.querySwapChainSupport(device)
	if err != nil {
		return false
	}

	return len(swapChainSupport.Formats) > 0 && len(swapChainSupport.PresentModes) > 0
}

func (app *HelloRayTracingApplication) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := app.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	if _, hasSwapchain := extensions[khr_swapchain.ExtensionName]; !hasSwapchain {
		return false
	}

	missing := rtdriver.MissingExtensions(extensions)
	if len(missing) > 0 {
		logrus.WithField("missing", missing).Debug("skipping physical device")
		return false
	}

	return true
}

// findGeneralQueueFamily returns a family that supports both graphics and
// presentation, so that one queue serves every submission.
func (app *HelloRayTracingApplication) findGeneralQueueFamily(device core1_0.PhysicalDevice) (int, error) {
	queueFamilies := app.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) == 0 {
			continue
		}

		supported, _, err := app.surfaceExtension.GetPhysicalDeviceSurfaceSupport(app.surface, device, queueFamilyIdx)
		if err != nil {
			return -1, err
		}

		if supported {
			return queueFamilyIdx, nil
		}
	}

	return -1, errors.New("findGeneralQueueFamily: no queue family supports graphics and present")
}

func (app *HelloRayTracingApplication) querySwapChainSupport(device core1_0.PhysicalDevice) (SwapChainSupportDetails, error) {
	var details SwapChainSupportDetails
	var err error

	details.Capabilities, _, err = app.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(app.surface, device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = app.surfaceExtension.GetPhysicalDeviceSurfaceFormats(app.surface, device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = app.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(app.surface, device)
	return details, err
}
