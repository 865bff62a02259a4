package rtutils

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type fakeBuffer struct {
	size    uint64
	usage   BufferUsageFlags
	memory  MemoryHandle
	address DeviceAddress
}

type fakeMemory struct {
	data          []byte
	typeIndex     int
	deviceAddress bool
	mapped        bool
}

type fakeAccel struct {
	buffer  BufferHandle
	size    uint64
	asType  AccelerationStructureType
	built   bool
	address DeviceAddress
}

type fakeBuild struct {
	info       BuildGeometryInfo
	buildRange BuildRangeInfo
	// scratchLive records whether the scratch address belonged to a live buffer when
	// the build was recorded.
	scratchLive bool
	// inputLive records whether every geometry input address was live.
	inputLive bool
	// inputs holds a copy of the geometry input buffer contents at build time.
	inputs [][]byte
}

type fakeCommandBuffer struct {
	device *fakeDevice
}

func (c *fakeCommandBuffer) BuildAccelerationStructure(info BuildGeometryInfo, buildRange BuildRangeInfo) error {
	d := c.device
	as, ok := d.accels[info.Dst]
	if !ok {
		return errors.Newf("build into unknown acceleration structure %d", info.Dst)
	}

	build := fakeBuild{info: info, buildRange: buildRange, inputLive: true}
	_, build.scratchLive = d.bufferAt(info.ScratchData)

	for _, geometry := range info.Geometries {
		var addresses []DeviceAddress
		switch geometry.Type {
		case GeometryTypeTriangles:
			addresses = []DeviceAddress{geometry.Triangles.VertexData, geometry.Triangles.IndexData}
		case GeometryTypeInstances:
			addresses = []DeviceAddress{geometry.Instances.Data}
		}
		for _, address := range addresses {
			buf, live := d.bufferAt(address)
			if !live {
				build.inputLive = false
				continue
			}
			contents := append([]byte(nil), d.memories[buf.memory].data[:buf.size]...)
			build.inputs = append(build.inputs, contents)
		}
	}

	as.built = true
	d.builds = append(d.builds, build)
	return nil
}

// fakeDevice is an in-memory Device. Handles come from one counter so every object
// gets a distinct value.
type fakeDevice struct {
	memoryTypes []MemoryType
	// memoryTypeBits is reported for every buffer; zero means all types.
	memoryTypeBits uint32
	props          RayTracingProperties

	failSubmit         bool
	failPipeline       bool
	failHandles        bool
	nullBufferAddress  bool
	failShaderModuleAt int

	nextHandle  uint64
	nextAddress DeviceAddress

	buffers      map[BufferHandle]*fakeBuffer
	memories     map[MemoryHandle]*fakeMemory
	accels       map[AccelerationStructureHandle]*fakeAccel
	modules      map[ShaderModuleHandle][]uint32
	pools        map[DescriptorPoolHandle][]DescriptorPoolSize
	setLayouts   map[DescriptorSetLayoutHandle][]DescriptorSetLayoutBinding
	sets         map[DescriptorSetHandle]DescriptorSetLayoutHandle
	layouts      map[PipelineLayoutHandle][]DescriptorSetLayoutHandle
	pipelines    map[PipelineHandle]RayTracingPipelineCreateInfo
	moduleCreate int

	builds      []fakeBuild
	submissions int
	events      []string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		memoryTypes: []MemoryType{
			{PropertyFlags: MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent, HeapIndex: 1},
			{PropertyFlags: MemoryPropertyDeviceLocal | MemoryPropertyHostVisible | MemoryPropertyHostCoherent, HeapIndex: 0},
		},
		props: RayTracingProperties{
			ShaderGroupHandleSize:      32,
			ShaderGroupHandleAlignment: 64,
			ShaderGroupBaseAlignment:   64,
			MaxRayRecursionDepth:       31,
		},
		failShaderModuleAt: -1,
		nextHandle:         1,
		nextAddress:        0x10000,
		buffers:            map[BufferHandle]*fakeBuffer{},
		memories:           map[MemoryHandle]*fakeMemory{},
		accels:             map[AccelerationStructureHandle]*fakeAccel{},
		modules:            map[ShaderModuleHandle][]uint32{},
		pools:              map[DescriptorPoolHandle][]DescriptorPoolSize{},
		setLayouts:         map[DescriptorSetLayoutHandle][]DescriptorSetLayoutBinding{},
		sets:               map[DescriptorSetHandle]DescriptorSetLayoutHandle{},
		layouts:            map[PipelineLayoutHandle][]DescriptorSetLayoutHandle{},
		pipelines:          map[PipelineHandle]RayTracingPipelineCreateInfo{},
	}
}

func (d *fakeDevice) handle() uint64 {
	h := d.nextHandle
	d.nextHandle++
	return h
}

func (d *fakeDevice) address(size uint64) DeviceAddress {
	a := d.nextAddress
	d.nextAddress += DeviceAddress((size + 0xFFF) &^ 0xFFF)
	return a
}

func (d *fakeDevice) bufferAt(address DeviceAddress) (*fakeBuffer, bool) {
	if address == 0 {
		return nil, false
	}
	for _, buf := range d.buffers {
		if buf.address == address {
			return buf, true
		}
	}
	return nil, false
}

func (d *fakeDevice) liveObjects() int {
	return len(d.buffers) + len(d.memories) + len(d.accels) + len(d.modules) +
		len(d.pools) + len(d.setLayouts) + len(d.sets) + len(d.layouts) + len(d.pipelines)
}

func (d *fakeDevice) MemoryTypes() []MemoryType { return d.memoryTypes }

func (d *fakeDevice) RayTracingProperties() RayTracingProperties { return d.props }

func (d *fakeDevice) CreateBuffer(size uint64, usage BufferUsageFlags) (BufferHandle, error) {
	h := BufferHandle(d.handle())
	d.buffers[h] = &fakeBuffer{size: size, usage: usage}
	return h, nil
}

func (d *fakeDevice) BufferMemoryRequirements(buffer BufferHandle) MemoryRequirements {
	bits := d.memoryTypeBits
	if bits == 0 {
		bits = 1<<len(d.memoryTypes) - 1
	}
	return MemoryRequirements{
		Size:           (d.buffers[buffer].size + 255) &^ 255,
		Alignment:      256,
		MemoryTypeBits: bits,
	}
}

func (d *fakeDevice) AllocateMemory(size uint64, memoryTypeIndex int, deviceAddress bool) (MemoryHandle, error) {
	h := MemoryHandle(d.handle())
	d.memories[h] = &fakeMemory{data: make([]byte, size), typeIndex: memoryTypeIndex, deviceAddress: deviceAddress}
	return h, nil
}

func (d *fakeDevice) BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error {
	if offset != 0 {
		return errors.Newf("unexpected bind offset %d", offset)
	}
	d.buffers[buffer].memory = memory
	return nil
}

func (d *fakeDevice) MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error) {
	mem, ok := d.memories[memory]
	if !ok {
		return nil, errors.Newf("map of unknown memory %d", memory)
	}
	flags := d.memoryTypes[mem.typeIndex].PropertyFlags
	if flags&MemoryPropertyHostVisible == 0 {
		return nil, errors.New("map of memory that is not host visible")
	}
	if mem.mapped {
		return nil, errors.New("memory already mapped")
	}
	mem.mapped = true
	return mem.data[offset : offset+size], nil
}

func (d *fakeDevice) UnmapMemory(memory MemoryHandle) {
	d.memories[memory].mapped = false
}

func (d *fakeDevice) BufferDeviceAddress(buffer BufferHandle) DeviceAddress {
	buf := d.buffers[buffer]
	if d.nullBufferAddress || buf.usage&BufferUsageShaderDeviceAddress == 0 {
		return 0
	}
	if mem, ok := d.memories[buf.memory]; !ok || !mem.deviceAddress {
		return 0
	}
	if buf.address == 0 {
		buf.address = d.address(buf.size)
	}
	return buf.address
}

func (d *fakeDevice) DestroyBuffer(buffer BufferHandle) {
	d.events = append(d.events, fmt.Sprintf("buffer %d", buffer))
	delete(d.buffers, buffer)
}

func (d *fakeDevice) FreeMemory(memory MemoryHandle) {
	d.events = append(d.events, fmt.Sprintf("memory %d", memory))
	delete(d.memories, memory)
}

func (d *fakeDevice) AccelerationStructureBuildSizes(info BuildGeometryInfo, maxPrimitiveCounts []uint32) BuildSizes {
	var primitives uint64
	for _, count := range maxPrimitiveCounts {
		primitives += uint64(count)
	}
	return BuildSizes{
		AccelerationStructureSize: 1024 + 128*primitives,
		UpdateScratchSize:         256,
		BuildScratchSize:          512 + 64*primitives,
	}
}

func (d *fakeDevice) CreateAccelerationStructure(buffer BufferHandle, offset, size uint64, asType AccelerationStructureType) (AccelerationStructureHandle, error) {
	buf, ok := d.buffers[buffer]
	if !ok {
		return 0, errors.New("acceleration structure on unknown buffer")
	}
	if offset+size > buf.size {
		return 0, errors.Newf("acceleration structure of %d bytes does not fit a %d byte buffer", size, buf.size)
	}
	h := AccelerationStructureHandle(d.handle())
	d.accels[h] = &fakeAccel{buffer: buffer, size: size, asType: asType}
	return h, nil
}

func (d *fakeDevice) AccelerationStructureDeviceAddress(as AccelerationStructureHandle) DeviceAddress {
	accel := d.accels[as]
	if accel.address == 0 {
		// Kept well away from buffer addresses.
		accel.address = 0xA5000000 + DeviceAddress(as)*0x100
	}
	return accel.address
}

func (d *fakeDevice) DestroyAccelerationStructure(as AccelerationStructureHandle) {
	d.events = append(d.events, fmt.Sprintf("accel %d", as))
	delete(d.accels, as)
}

func (d *fakeDevice) SubmitOneShot(record func(cmd CommandBuffer) error) error {
	d.submissions++
	if d.failSubmit {
		return errors.New("VK_ERROR_DEVICE_LOST")
	}
	return record(&fakeCommandBuffer{device: d})
}

func (d *fakeDevice) CreateShaderModule(code []uint32) (ShaderModuleHandle, error) {
	index := d.moduleCreate
	d.moduleCreate++
	if index == d.failShaderModuleAt {
		return 0, errors.New("VK_ERROR_INVALID_SHADER_NV")
	}
	h := ShaderModuleHandle(d.handle())
	d.modules[h] = code
	return h, nil
}

func (d *fakeDevice) DestroyShaderModule(module ShaderModuleHandle) {
	d.events = append(d.events, fmt.Sprintf("module %d", module))
	delete(d.modules, module)
}

func (d *fakeDevice) CreateDescriptorPool(maxSets int, sizes []DescriptorPoolSize, flags DescriptorPoolCreateFlags) (DescriptorPoolHandle, error) {
	if maxSets != 1 || flags != DescriptorPoolCreateFreeDescriptorSet {
		return 0, errors.Newf("unexpected pool maxSets=%d flags=%d", maxSets, flags)
	}
	h := DescriptorPoolHandle(d.handle())
	d.pools[h] = sizes
	return h, nil
}

func (d *fakeDevice) DestroyDescriptorPool(pool DescriptorPoolHandle) {
	d.events = append(d.events, "pool")
	delete(d.pools, pool)
}

func (d *fakeDevice) CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayoutHandle, error) {
	h := DescriptorSetLayoutHandle(d.handle())
	d.setLayouts[h] = bindings
	return h, nil
}

func (d *fakeDevice) DestroyDescriptorSetLayout(layout DescriptorSetLayoutHandle) {
	d.events = append(d.events, "set layout")
	delete(d.setLayouts, layout)
}

func (d *fakeDevice) AllocateDescriptorSet(pool DescriptorPoolHandle, layout DescriptorSetLayoutHandle) (DescriptorSetHandle, error) {
	if _, ok := d.pools[pool]; !ok {
		return 0, errors.New("allocate from unknown pool")
	}
	h := DescriptorSetHandle(d.handle())
	d.sets[h] = layout
	return h, nil
}

func (d *fakeDevice) FreeDescriptorSet(pool DescriptorPoolHandle, set DescriptorSetHandle) error {
	d.events = append(d.events, "set")
	delete(d.sets, set)
	return nil
}

func (d *fakeDevice) CreatePipelineLayout(setLayouts []DescriptorSetLayoutHandle) (PipelineLayoutHandle, error) {
	h := PipelineLayoutHandle(d.handle())
	d.layouts[h] = setLayouts
	return h, nil
}

func (d *fakeDevice) DestroyPipelineLayout(layout PipelineLayoutHandle) {
	d.events = append(d.events, "pipeline layout")
	delete(d.layouts, layout)
}

func (d *fakeDevice) CreateRayTracingPipeline(info RayTracingPipelineCreateInfo) (PipelineHandle, error) {
	if d.failPipeline {
		return 0, errors.New("VK_ERROR_OUT_OF_DEVICE_MEMORY")
	}
	h := PipelineHandle(d.handle())
	d.pipelines[h] = info
	return h, nil
}

func (d *fakeDevice) DestroyPipeline(pipeline PipelineHandle) {
	d.events = append(d.events, "pipeline")
	delete(d.pipelines, pipeline)
}

// fakeHandleByte is byte j of the handle of group i.
func fakeHandleByte(i, j uint32) byte {
	return byte(0x10*(i+1) + j)
}

func (d *fakeDevice) RayTracingShaderGroupHandles(pipeline PipelineHandle, firstGroup, groupCount uint32, data []byte) error {
	if d.failHandles {
		return errors.New("VK_ERROR_OUT_OF_HOST_MEMORY")
	}
	info, ok := d.pipelines[pipeline]
	if !ok {
		return errors.New("handles of unknown pipeline")
	}
	if firstGroup+groupCount > uint32(len(info.Groups)) {
		return errors.New("group range out of bounds")
	}

	h := d.props.ShaderGroupHandleSize
	packed := make([]byte, groupCount*h)
	for i := uint32(0); i < groupCount; i++ {
		for j := uint32(0); j < h; j++ {
			packed[i*h+j] = fakeHandleByte(firstGroup+i, j)
		}
	}
	return SpreadHandles(data, packed, groupCount, h)
}
