package rtdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_2"
	"github.com/vkngwrapper/core/v3/mocks"
	"github.com/vkngwrapper/core/v3/mocks/mocks1_2"
	"go.uber.org/mock/gomock"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

func newMockDriver(t *testing.T) (*Driver, *mocks1_2.MockDeviceDriver, core1_0.Device) {
	ctrl := gomock.NewController(t)

	device := mocks.NewDummyDevice(common.Vulkan1_2, []string{})
	deviceDriver := mocks1_2.NewMockDeviceDriver(ctrl)

	d := newDriver(device, deviceDriver, mocks.NewDummyQueue(device), mocks.NewDummyCommandPool(device))
	return d, deviceDriver, device
}

func TestMissingExtensions(t *testing.T) {
	available := map[string]int{
		ExtensionAccelerationStructure:  1,
		ExtensionRayTracingPipeline:     1,
		ExtensionPipelineLibrary:        1,
		ExtensionDeferredHostOperations: 1,
		ExtensionBufferDeviceAddress:    1,
		"VK_KHR_swapchain":              1,
	}
	assert.Empty(t, MissingExtensions(available))

	delete(available, ExtensionRayTracingPipeline)
	delete(available, ExtensionBufferDeviceAddress)
	assert.Equal(t, []string{ExtensionRayTracingPipeline, ExtensionBufferDeviceAddress}, MissingExtensions(available))

	assert.Len(t, MissingExtensions(map[string]struct{}{}), len(DeviceExtensions))
}

func TestFeatureChain(t *testing.T) {
	chain := FeatureChain()

	addressFeatures, ok := chain.(core1_2.PhysicalDeviceBufferDeviceAddressFeatures)
	require.True(t, ok)
	assert.True(t, addressFeatures.BufferDeviceAddress)
	assert.False(t, addressFeatures.BufferDeviceAddressCaptureReplay)

	rayTracing, ok := chain.NextOptionsInChain().(RayTracingFeatures)
	require.True(t, ok)
	assert.Nil(t, rayTracing.NextOptionsInChain())
}

func TestDriver_HandlesAreDistinct(t *testing.T) {
	d, deviceDriver, device := newMockDriver(t)

	module := mocks.NewDummyShaderModule(device)
	buffer := mocks.NewDummyBuffer(device)

	deviceDriver.EXPECT().CreateShaderModule(gomock.Nil(), core1_0.ShaderModuleCreateInfo{
		Code: []uint32{0x07230203, 1},
	}).Return(module, core1_0.VKSuccess, nil)
	deviceDriver.EXPECT().CreateBuffer(gomock.Nil(), core1_0.BufferCreateInfo{
		Size:        64,
		Usage:       core1_0.BufferUsageFlags(rtutils.BufferUsageStorageBuffer),
		SharingMode: core1_0.SharingModeExclusive,
	}).Return(buffer, core1_0.VKSuccess, nil)

	moduleHandle, err := d.CreateShaderModule([]uint32{0x07230203, 1})
	require.NoError(t, err)
	bufferHandle, err := d.CreateBuffer(64, rtutils.BufferUsageStorageBuffer)
	require.NoError(t, err)

	assert.NotZero(t, moduleHandle)
	assert.NotEqual(t, uint64(moduleHandle), uint64(bufferHandle))
	assert.Equal(t, module, d.modules[moduleHandle])
	assert.Equal(t, buffer, d.buffers[bufferHandle])

	deviceDriver.EXPECT().DestroyBuffer(buffer, gomock.Nil())
	d.DestroyBuffer(bufferHandle)
	d.DestroyBuffer(bufferHandle)
	assert.Empty(t, d.buffers)

	deviceDriver.EXPECT().DestroyShaderModule(module, gomock.Nil())
	d.DestroyShaderModule(moduleHandle)
	assert.Empty(t, d.modules)
}

func TestDriver_CreateFailureRegistersNothing(t *testing.T) {
	d, deviceDriver, _ := newMockDriver(t)

	deviceDriver.EXPECT().CreateBuffer(gomock.Nil(), gomock.Any()).
		Return(core1_0.Buffer{}, core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError())

	h, err := d.CreateBuffer(64, rtutils.BufferUsageStorageBuffer)
	require.Error(t, err)
	assert.Zero(t, h)
	assert.Empty(t, d.buffers)
}

func TestDriver_Destroy(t *testing.T) {
	d, deviceDriver, device := newMockDriver(t)

	pipeline := mocks.NewDummyPipeline(device)
	pipelineLayout := mocks.NewDummyPipelineLayout(device)
	pool := mocks.NewDummyDescriptorPool(device)
	set := mocks.NewDummyDescriptorSet(pool, device)
	setLayout := mocks.NewDummyDescriptorSetLayout(device)
	module := mocks.NewDummyShaderModule(device)
	buffer := mocks.NewDummyBuffer(device)
	memory := mocks.NewDummyDeviceMemory(device, 256)
	cache := mocks.NewDummyPipelineCache(device)

	d.pipelines[1] = pipeline
	d.pipelineLayouts[2] = pipelineLayout
	d.pools[3] = pool
	d.sets[4] = set
	d.setLayouts[5] = setLayout
	d.modules[6] = module
	d.buffers[7] = buffer
	d.memories[8] = memory
	d.pipelineCache = cache

	gomock.InOrder(
		deviceDriver.EXPECT().DestroyPipeline(pipeline, gomock.Nil()),
		deviceDriver.EXPECT().DestroyPipelineLayout(pipelineLayout, gomock.Nil()),
		deviceDriver.EXPECT().DestroyDescriptorPool(pool, gomock.Nil()),
		deviceDriver.EXPECT().DestroyDescriptorSetLayout(setLayout, gomock.Nil()),
		deviceDriver.EXPECT().DestroyShaderModule(module, gomock.Nil()),
		deviceDriver.EXPECT().DestroyBuffer(buffer, gomock.Nil()),
		deviceDriver.EXPECT().FreeMemory(memory, gomock.Nil()),
		deviceDriver.EXPECT().DestroyPipelineCache(cache, gomock.Nil()),
	)

	d.Destroy()

	assert.Empty(t, d.pipelines)
	assert.Empty(t, d.pipelineLayouts)
	assert.Empty(t, d.pools)
	assert.Empty(t, d.sets)
	assert.Empty(t, d.setLayouts)
	assert.Empty(t, d.modules)
	assert.Empty(t, d.buffers)
	assert.Empty(t, d.memories)
	assert.False(t, d.pipelineCache.Initialized())

	// A second sweep finds nothing left to release.
	d.Destroy()
}
