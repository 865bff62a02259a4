package rtdriver

import (
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_1"
	"github.com/vkngwrapper/core/v3/core1_2"
	"github.com/vkngwrapper/core/v3/loader"
	"github.com/vkngwrapper/core/v3/mocks"
	"go.uber.org/mock/gomock"
)

func TestDriver_AllocateMemory(t *testing.T) {
	tests := []struct {
		name          string
		deviceAddress bool
		expectedNext  common.Options
	}{
		{
			name:          "device address",
			deviceAddress: true,
			expectedNext: core1_1.MemoryAllocateFlagsInfo{
				Flags: core1_2.MemoryAllocateDeviceAddress,
			},
		},
		{
			name:          "plain",
			deviceAddress: false,
			expectedNext:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, deviceDriver, device := newMockDriver(t)
			memory := mocks.NewDummyDeviceMemory(device, 256)

			deviceDriver.EXPECT().AllocateMemory(gomock.Nil(), gomock.Any()).DoAndReturn(
				func(callbacks *loader.AllocationCallbacks, o core1_0.MemoryAllocateInfo) (core1_0.DeviceMemory, common.VkResult, error) {
					assert.Equal(t, 256, o.AllocationSize)
					assert.Equal(t, 3, o.MemoryTypeIndex)
					assert.Equal(t, tt.expectedNext, o.NextOptionsInChain())
					return memory, core1_0.VKSuccess, nil
				})

			h, err := d.AllocateMemory(256, 3, tt.deviceAddress)
			require.NoError(t, err)
			assert.Equal(t, memory, d.memories[h])
		})
	}
}

func TestDriver_BufferDeviceAddress(t *testing.T) {
	d, deviceDriver, device := newMockDriver(t)
	buffer := mocks.NewDummyBuffer(device)
	d.buffers[1] = buffer

	deviceDriver.EXPECT().GetBufferDeviceAddress(core1_2.BufferDeviceAddressInfo{
		Buffer: buffer,
	}).Return(uint64(0xdead0000), nil)
	assert.EqualValues(t, 0xdead0000, d.BufferDeviceAddress(1))

	deviceDriver.EXPECT().GetBufferDeviceAddress(gomock.Any()).Return(uint64(0), errors.New("lost"))
	assert.Zero(t, d.BufferDeviceAddress(1))

	assert.Zero(t, d.BufferDeviceAddress(99))
}

func TestDriver_MapMemory(t *testing.T) {
	d, deviceDriver, device := newMockDriver(t)
	memory := mocks.NewDummyDeviceMemory(device, 64)
	d.memories[1] = memory

	backing := make([]byte, 16)
	deviceDriver.EXPECT().MapMemory(memory, 32, 16, core1_0.MemoryMapFlags(0)).
		Return(unsafe.Pointer(&backing[0]), core1_0.VKSuccess, nil)

	mapped, err := d.MapMemory(1, 32, 16)
	require.NoError(t, err)
	require.Len(t, mapped, 16)
	mapped[3] = 0x7f
	assert.Equal(t, byte(0x7f), backing[3])

	_, err = d.MapMemory(2, 0, 16)
	assert.ErrorContains(t, err, "unknown memory 2")
}
