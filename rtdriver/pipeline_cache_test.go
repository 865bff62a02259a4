package rtdriver

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/mocks"
	"go.uber.org/mock/gomock"
)

var testCacheUUID = uuid.MustParse("6b1c8a3e-2f4d-4e5a-9b7c-0d1e2f3a4b5c")

func cacheData(t *testing.T, header cacheHeader, payload ...byte) []byte {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, common.ByteOrder, header))
	buf.Write(payload)
	return buf.Bytes()
}

func validHeader() cacheHeader {
	return cacheHeader{
		HeaderLength:  32,
		HeaderVersion: core1_0.PipelineCacheHeaderVersionOne,
		VendorID:      0x10de,
		DeviceID:      0x2204,
		CacheUUID:     testCacheUUID,
	}
}

func TestCheckCacheHeader(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *cacheHeader)
		valid  bool
	}{
		{name: "matching", mutate: func(h *cacheHeader) {}, valid: true},
		{name: "zero length", mutate: func(h *cacheHeader) { h.HeaderLength = 0 }},
		{name: "unknown version", mutate: func(h *cacheHeader) { h.HeaderVersion = 2 }},
		{name: "other vendor", mutate: func(h *cacheHeader) { h.VendorID = 0x1002 }},
		{name: "other device", mutate: func(h *cacheHeader) { h.DeviceID = 0x73bf }},
		{name: "other driver build", mutate: func(h *cacheHeader) { h.CacheUUID = uuid.New() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := validHeader()
			tt.mutate(&header)

			err := checkCacheHeader(cacheData(t, header, 1, 2, 3), 0x10de, 0x2204, testCacheUUID)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrStaleCache)
		})
	}

	t.Run("truncated", func(t *testing.T) {
		err := checkCacheHeader([]byte{32, 0, 0, 0, 1}, 0x10de, 0x2204, testCacheUUID)
		require.ErrorIs(t, err, ErrStaleCache)
	})
}

func TestDriver_LoadPipelineCache(t *testing.T) {
	dir := t.TempDir()
	fresh := cacheData(t, validHeader(), 9, 9, 9)

	stale := validHeader()
	stale.CacheUUID = uuid.New()

	tests := []struct {
		name         string
		contents     []byte
		expectedSeed []byte
		keepsFile    bool
	}{
		{name: "missing file", contents: nil, expectedSeed: nil},
		{name: "matching file", contents: fresh, expectedSeed: fresh, keepsFile: true},
		{name: "stale file", contents: cacheData(t, stale, 9), expectedSeed: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, deviceDriver, device := newMockDriver(t)
			d.vendorID = 0x10de
			d.deviceID = 0x2204
			d.cacheUUID = testCacheUUID

			path := filepath.Join(dir, tt.name+".bin")
			if tt.contents != nil {
				require.NoError(t, os.WriteFile(path, tt.contents, 0o644))
			}

			cache := mocks.NewDummyPipelineCache(device)
			deviceDriver.EXPECT().CreatePipelineCache(gomock.Nil(), core1_0.PipelineCacheCreateInfo{
				InitialData: tt.expectedSeed,
			}).Return(cache, core1_0.VKSuccess, nil)

			require.NoError(t, d.LoadPipelineCache(path))
			assert.Equal(t, cache, d.pipelineCache)

			_, err := os.Stat(path)
			assert.Equal(t, tt.keepsFile, err == nil)
		})
	}
}

func TestDriver_LoadPipelineCacheReplacesCache(t *testing.T) {
	d, deviceDriver, device := newMockDriver(t)
	path := filepath.Join(t.TempDir(), "missing.bin")

	first := mocks.NewDummyPipelineCache(device)
	second := mocks.NewDummyPipelineCache(device)
	gomock.InOrder(
		deviceDriver.EXPECT().CreatePipelineCache(gomock.Nil(), gomock.Any()).Return(first, core1_0.VKSuccess, nil),
		deviceDriver.EXPECT().CreatePipelineCache(gomock.Nil(), gomock.Any()).Return(second, core1_0.VKSuccess, nil),
		deviceDriver.EXPECT().DestroyPipelineCache(first, gomock.Nil()),
	)

	require.NoError(t, d.LoadPipelineCache(path))
	require.NoError(t, d.LoadPipelineCache(path))
	assert.Equal(t, second, d.pipelineCache)
}

func TestDriver_SavePipelineCache(t *testing.T) {
	d, deviceDriver, device := newMockDriver(t)
	path := filepath.Join(t.TempDir(), "cache.bin")

	require.Error(t, d.SavePipelineCache(path))

	d.pipelineCache = mocks.NewDummyPipelineCache(device)
	data := cacheData(t, validHeader(), 4, 5, 6)
	deviceDriver.EXPECT().GetPipelineCacheData(d.pipelineCache).Return(data, core1_0.VKSuccess, nil)

	require.NoError(t, d.SavePipelineCache(path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written)
	assert.NoError(t, checkCacheHeader(written, 0x10de, 0x2204, testCacheUUID))
}
