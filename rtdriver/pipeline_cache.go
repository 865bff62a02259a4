package rtdriver

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// ErrStaleCache marks pipeline cache data written by a different device or driver.
var ErrStaleCache = errors.New("pipeline cache was written for another device")

// cacheHeader is the version one header that leads VkPipelineCache data.
type cacheHeader struct {
	HeaderLength  uint32
	HeaderVersion core1_0.PipelineCacheHeaderVersion
	VendorID      uint32
	DeviceID      uint32
	CacheUUID     uuid.UUID
}

func checkCacheHeader(data []byte, vendorID, deviceID uint32, cacheUUID uuid.UUID) error {
	var header cacheHeader
	err := binary.Read(bytes.NewReader(data), common.ByteOrder, &header)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "reading cache header"), ErrStaleCache)
	}

	switch {
	case header.HeaderLength == 0:
		return errors.Wrap(ErrStaleCache, "zero header length")
	case header.HeaderVersion != core1_0.PipelineCacheHeaderVersionOne:
		return errors.Wrapf(ErrStaleCache, "unsupported header version %d", header.HeaderVersion)
	case header.VendorID != vendorID:
		return errors.Wrapf(ErrStaleCache, "vendor 0x%x, device has 0x%x", header.VendorID, vendorID)
	case header.DeviceID != deviceID:
		return errors.Wrapf(ErrStaleCache, "device 0x%x, device has 0x%x", header.DeviceID, deviceID)
	case header.CacheUUID != cacheUUID:
		return errors.Wrapf(ErrStaleCache, "cache UUID %s, driver expects %s", header.CacheUUID, cacheUUID)
	}
	return nil
}

// LoadPipelineCache creates the pipeline cache CreateRayTracingPipeline feeds from.
// The cache is seeded from path when the file exists and matches this device; a
// stale file is removed so the next SavePipelineCache repopulates it.
func (d *Driver) LoadPipelineCache(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.WithField("path", path).Info("pipeline cache miss")
		data = nil
	} else if err != nil {
		return errors.Wrap(err, "reading pipeline cache")
	}

	if data != nil {
		err = checkCacheHeader(data, d.vendorID, d.deviceID, d.cacheUUID)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("discarding pipeline cache")
			data = nil
			_ = os.Remove(path)
		}
	}

	cache, _, err := d.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: data,
	})
	if err != nil {
		return errors.Wrap(err, "createPipelineCache")
	}

	if d.pipelineCache.Initialized() {
		d.deviceDriver.DestroyPipelineCache(d.pipelineCache, nil)
	}
	d.pipelineCache = cache

	logrus.WithFields(logrus.Fields{
		"path":  path,
		"bytes": len(data),
		"uuid":  d.cacheUUID,
	}).Debug("pipeline cache ready")
	return nil
}

// SavePipelineCache writes the contents of the loaded pipeline cache to path.
func (d *Driver) SavePipelineCache(path string) error {
	if !d.pipelineCache.Initialized() {
		return errors.New("savePipelineCache: no pipeline cache loaded")
	}

	data, _, err := d.deviceDriver.GetPipelineCacheData(d.pipelineCache)
	if err != nil {
		return errors.Wrap(err, "getPipelineCacheData")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing pipeline cache %s", path)
}
