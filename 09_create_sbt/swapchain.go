package main

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// The ray generation shader writes swapchain images directly, so they are storage
// images rather than color attachments.
func (app *HelloRayTracingApplication) createSwapchain() error {
	app.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(app.deviceDriver)

	swapchainSupport, err := app.querySwapChainSupport(app.physicalDevice)
	if err != nil {
		return err
	}

	surfaceFormat := app.chooseSwapSurfaceFormat(swapchainSupport.Formats)
	presentMode := app.chooseSwapPresentMode(swapchainSupport.PresentModes)
	extent := app.chooseSwapExtent(swapchainSupport.Capabilities)

	imageCount := swapchainSupport.Capabilities.MinImageCount + 1
	if swapchainSupport.Capabilities.MaxImageCount > 0 && swapchainSupport.Capabilities.MaxImageCount < imageCount {
		imageCount = swapchainSupport.Capabilities.MaxImageCount
	}

	swapchain, _, err := app.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: app.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageStorage,

		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Wrap(err, "createSwapchain")
	}
	app.swapchainExtent = extent
	app.swapchain = swapchain
	app.swapchainImageFormat = surfaceFormat.Format

	return nil
}

func (app *HelloRayTracingApplication) createImageViews() error {
	images, _, err := app.swapchainExtension.GetSwapchainImages(app.swapchain)
	if err != nil {
		return err
	}
	app.swapchainImages = images

	for _, image := range images {
		view, _, err := app.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   app.swapchainImageFormat,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return errors.Wrap(err, "createImageView")
		}

		app.swapchainImageViews = append(app.swapchainImageViews, view)
	}

	return app.rt.RecordOneShot(func(driver core1_0.DeviceDriver, buffer core1_0.CommandBuffer) error {
		var barriers []core1_0.ImageMemoryBarrier
		for _, image := range images {
			barriers = append(barriers, core1_0.ImageMemoryBarrier{
				OldLayout:           core1_0.ImageLayoutUndefined,
				NewLayout:           khr_swapchain.ImageLayoutPresentSrc,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               image,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask:     core1_0.ImageAspectColor,
					BaseMipLevel:   0,
					LevelCount:     1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
			})
		}

		return driver.CmdPipelineBarrier(buffer, core1_0.PipelineStageTopOfPipe, core1_0.PipelineStageBottomOfPipe, 0, nil, nil, barriers)
	})
}

// Storage images cannot be sRGB on most devices, so prefer a UNORM format.
func (app *HelloRayTracingApplication) chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8UnsignedNormalized && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func (app *HelloRayTracingApplication) chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

func (app *HelloRayTracingApplication) chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	widthInt, heightInt := app.window.VulkanGetDrawableSize()
	width := int(widthInt)
	height := int(heightInt)

	width = min(max(width, capabilities.MinImageExtent.Width), capabilities.MaxImageExtent.Width)
	height = min(max(height, capabilities.MinImageExtent.Height), capabilities.MaxImageExtent.Height)

	return core1_0.Extent2D{Width: width, Height: height}
}
