package rtutils

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// AccelStruct is an acceleration structure together with the buffer that backs it.
type AccelStruct struct {
	device Device

	Handle AccelerationStructureHandle
	Type   AccelerationStructureType
	Buffer *Buffer
	// Address is the structure's own device address, as reported by the device.
	Address DeviceAddress
}

// BuildAccelStruct creates and builds one acceleration structure of the given type
// over a single geometry. It blocks until the build has completed on the device.
func BuildAccelStruct(device Device, asType AccelerationStructureType, geometry Geometry, primitiveCount uint32) (*AccelStruct, error) {
	buildInfo := BuildGeometryInfo{
		Type:       asType,
		Flags:      BuildAccelerationStructurePreferFastTrace,
		Mode:       BuildAccelerationStructureModeBuild,
		Geometries: []Geometry{geometry},
	}

	sizes := device.AccelerationStructureBuildSizes(buildInfo, []uint32{primitiveCount})
	logrus.WithFields(logrus.Fields{
		"type":           asType,
		"primitiveCount": primitiveCount,
		"size":           sizes.AccelerationStructureSize,
		"scratchSize":    sizes.BuildScratchSize,
	}).Debug("acceleration structure build sizes")

	backing, err := NewBuffer(device, sizes.AccelerationStructureSize,
		BufferUsageAccelerationStructureStorage,
		MemoryPropertyDeviceLocal, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s acceleration structure buffer", asType)
	}

	handle, err := device.CreateAccelerationStructure(backing.Handle, 0, sizes.AccelerationStructureSize, asType)
	if err != nil {
		backing.Destroy()
		return nil, errors.Wrapf(err, "createAccelerationStructure (%s)", asType)
	}
	accel := &AccelStruct{
		device: device,
		Handle: handle,
		Type:   asType,
		Buffer: backing,
	}

	// The scratch buffer only has to live until the blocking submission returns.
	scratch, err := NewBuffer(device, sizes.BuildScratchSize,
		BufferUsageStorageBuffer|BufferUsageShaderDeviceAddress,
		MemoryPropertyDeviceLocal, nil)
	if err != nil {
		accel.Destroy()
		return nil, errors.Wrapf(err, "create %s scratch buffer", asType)
	}
	defer scratch.Destroy()

	buildInfo.Dst = handle
	buildInfo.ScratchData = scratch.Address

	buildRange := BuildRangeInfo{
		PrimitiveCount:  primitiveCount,
		PrimitiveOffset: 0,
		FirstVertex:     0,
		TransformOffset: 0,
	}

	err = device.SubmitOneShot(func(cmd CommandBuffer) error {
		return cmd.BuildAccelerationStructure(buildInfo, buildRange)
	})
	if err != nil {
		accel.Destroy()
		return nil, errors.Mark(errors.Wrapf(err, "build %s acceleration structure", asType), ErrBuildSubmitFailed)
	}

	accel.Address = device.AccelerationStructureDeviceAddress(handle)
	if accel.Address == 0 {
		accel.Destroy()
		return nil, errors.Newf("getAccelerationStructureDeviceAddress (%s): device returned a null address", asType)
	}

	return accel, nil
}

// Destroy releases the acceleration structure before its backing buffer.
func (a *AccelStruct) Destroy() {
	if a == nil || a.device == nil {
		return
	}

	if a.Handle != 0 {
		a.device.DestroyAccelerationStructure(a.Handle)
	}
	a.Buffer.Destroy()
	*a = AccelStruct{}
}
