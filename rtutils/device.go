package rtutils

// Handles are opaque to this package. The values are whatever the backing driver
// uses to identify the object (for rtdriver, the raw Vulkan handle).
type (
	BufferHandle                uint64
	MemoryHandle                uint64
	AccelerationStructureHandle uint64
	ShaderModuleHandle          uint64
	DescriptorPoolHandle        uint64
	DescriptorSetLayoutHandle   uint64
	DescriptorSetHandle         uint64
	PipelineLayoutHandle        uint64
	PipelineHandle              uint64
)

// DeviceAddress is a 64-bit GPU virtual address.
type DeviceAddress uint64

// Flag values match their Vulkan counterparts so drivers can pass them through.
type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc                             BufferUsageFlags = 0x00000001
	BufferUsageTransferDst                             BufferUsageFlags = 0x00000002
	BufferUsageStorageBuffer                           BufferUsageFlags = 0x00000020
	BufferUsageShaderBindingTable                      BufferUsageFlags = 0x00000400
	BufferUsageShaderDeviceAddress                     BufferUsageFlags = 0x00020000
	BufferUsageAccelerationStructureBuildInputReadOnly BufferUsageFlags = 0x00080000
	BufferUsageAccelerationStructureStorage            BufferUsageFlags = 0x00100000
)

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x1
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x2
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x4
	MemoryPropertyHostCached   MemoryPropertyFlags = 0x8
)

type ShaderStageFlags uint32

const (
	StageRaygen       ShaderStageFlags = 0x00000100
	StageAnyHit       ShaderStageFlags = 0x00000200
	StageClosestHit   ShaderStageFlags = 0x00000400
	StageMiss         ShaderStageFlags = 0x00000800
	StageIntersection ShaderStageFlags = 0x00001000
	StageCallable     ShaderStageFlags = 0x00002000
)

func (s ShaderStageFlags) String() string {
	switch s {
	case StageRaygen:
		return "raygen"
	case StageAnyHit:
		return "any-hit"
	case StageClosestHit:
		return "closest-hit"
	case StageMiss:
		return "miss"
	case StageIntersection:
		return "intersection"
	case StageCallable:
		return "callable"
	}
	return "unknown"
}

type DescriptorType int32

const (
	DescriptorTypeStorageImage          DescriptorType = 3
	DescriptorTypeAccelerationStructure DescriptorType = 1000150000
)

type DescriptorPoolCreateFlags uint32

const DescriptorPoolCreateFreeDescriptorSet DescriptorPoolCreateFlags = 0x1

type AccelerationStructureType int32

const (
	AccelerationStructureTypeTopLevel    AccelerationStructureType = 0
	AccelerationStructureTypeBottomLevel AccelerationStructureType = 1
)

func (t AccelerationStructureType) String() string {
	switch t {
	case AccelerationStructureTypeTopLevel:
		return "top-level"
	case AccelerationStructureTypeBottomLevel:
		return "bottom-level"
	}
	return "unknown"
}

type BuildAccelerationStructureFlags uint32

const (
	BuildAccelerationStructureAllowUpdate     BuildAccelerationStructureFlags = 0x1
	BuildAccelerationStructureAllowCompaction BuildAccelerationStructureFlags = 0x2
	BuildAccelerationStructurePreferFastTrace BuildAccelerationStructureFlags = 0x4
	BuildAccelerationStructurePreferFastBuild BuildAccelerationStructureFlags = 0x8
)

type BuildAccelerationStructureMode int32

const (
	BuildAccelerationStructureModeBuild  BuildAccelerationStructureMode = 0
	BuildAccelerationStructureModeUpdate BuildAccelerationStructureMode = 1
)

type GeometryType int32

const (
	GeometryTypeTriangles GeometryType = 0
	GeometryTypeAABBs     GeometryType = 1
	GeometryTypeInstances GeometryType = 2
)

type GeometryFlags uint32

const (
	GeometryOpaque                      GeometryFlags = 0x1
	GeometryNoDuplicateAnyHitInvocation GeometryFlags = 0x2
)

type GeometryInstanceFlags uint8

const (
	GeometryInstanceTriangleFacingCullDisable GeometryInstanceFlags = 0x1
	GeometryInstanceTriangleFlipFacing        GeometryInstanceFlags = 0x2
	GeometryInstanceForceOpaque               GeometryInstanceFlags = 0x4
	GeometryInstanceForceNoOpaque             GeometryInstanceFlags = 0x8
)

type Format int32

const FormatR32G32B32SignedFloat Format = 106

type IndexType int32

const IndexTypeUInt32 IndexType = 1

type ShaderGroupType int32

const (
	ShaderGroupTypeGeneral            ShaderGroupType = 0
	ShaderGroupTypeTrianglesHitGroup  ShaderGroupType = 1
	ShaderGroupTypeProceduralHitGroup ShaderGroupType = 2
)

// ShaderUnused marks an empty shader slot in a ShaderGroup.
const ShaderUnused = ^uint32(0)

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     int
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// RayTracingProperties is the subset of the device's ray tracing pipeline
// properties needed to lay out a shader binding table.
type RayTracingProperties struct {
	ShaderGroupHandleSize      uint32
	ShaderGroupHandleAlignment uint32
	ShaderGroupBaseAlignment   uint32
	MaxRayRecursionDepth       uint32
}

type TrianglesData struct {
	VertexFormat  Format
	VertexData    DeviceAddress
	VertexStride  uint64
	MaxVertex     uint32
	IndexType     IndexType
	IndexData     DeviceAddress
	TransformData DeviceAddress
}

type InstancesData struct {
	ArrayOfPointers bool
	Data            DeviceAddress
}

// Geometry describes one build input. Only the member selected by Type is read.
type Geometry struct {
	Type      GeometryType
	Triangles TrianglesData
	Instances InstancesData
	Flags     GeometryFlags
}

type BuildGeometryInfo struct {
	Type        AccelerationStructureType
	Flags       BuildAccelerationStructureFlags
	Mode        BuildAccelerationStructureMode
	Dst         AccelerationStructureHandle
	ScratchData DeviceAddress
	Geometries  []Geometry
}

type BuildRangeInfo struct {
	PrimitiveCount  uint32
	PrimitiveOffset uint32
	FirstVertex     uint32
	TransformOffset uint32
}

type BuildSizes struct {
	AccelerationStructureSize uint64
	UpdateScratchSize         uint64
	BuildScratchSize          uint64
}

type DescriptorPoolSize struct {
	Type            DescriptorType
	DescriptorCount int
}

type DescriptorSetLayoutBinding struct {
	Binding         int
	DescriptorType  DescriptorType
	DescriptorCount int
	StageFlags      ShaderStageFlags
}

type ShaderStage struct {
	Stage  ShaderStageFlags
	Module ShaderModuleHandle
	Name   string
}

type ShaderGroup struct {
	Type         ShaderGroupType
	General      uint32
	ClosestHit   uint32
	AnyHit       uint32
	Intersection uint32
}

type RayTracingPipelineCreateInfo struct {
	Stages                       []ShaderStage
	Groups                       []ShaderGroup
	MaxPipelineRayRecursionDepth uint32
	Layout                       PipelineLayoutHandle
}

// CommandBuffer is the recording surface handed to SubmitOneShot callbacks.
type CommandBuffer interface {
	BuildAccelerationStructure(info BuildGeometryInfo, buildRange BuildRangeInfo) error
}

// Device is the part of the GPU API the ray tracing setup consumes. Every call is
// made from a single goroutine.
type Device interface {
	MemoryTypes() []MemoryType
	RayTracingProperties() RayTracingProperties

	CreateBuffer(size uint64, usage BufferUsageFlags) (BufferHandle, error)
	BufferMemoryRequirements(buffer BufferHandle) MemoryRequirements
	AllocateMemory(size uint64, memoryTypeIndex int, deviceAddress bool) (MemoryHandle, error)
	BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error
	MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error)
	UnmapMemory(memory MemoryHandle)
	BufferDeviceAddress(buffer BufferHandle) DeviceAddress
	DestroyBuffer(buffer BufferHandle)
	FreeMemory(memory MemoryHandle)

	AccelerationStructureBuildSizes(info BuildGeometryInfo, maxPrimitiveCounts []uint32) BuildSizes
	CreateAccelerationStructure(buffer BufferHandle, offset, size uint64, asType AccelerationStructureType) (AccelerationStructureHandle, error)
	AccelerationStructureDeviceAddress(as AccelerationStructureHandle) DeviceAddress
	DestroyAccelerationStructure(as AccelerationStructureHandle)

	// SubmitOneShot records commands into a fresh command buffer, submits it and
	// blocks until the queue is idle.
	SubmitOneShot(record func(cmd CommandBuffer) error) error

	CreateShaderModule(code []uint32) (ShaderModuleHandle, error)
	DestroyShaderModule(module ShaderModuleHandle)

	CreateDescriptorPool(maxSets int, sizes []DescriptorPoolSize, flags DescriptorPoolCreateFlags) (DescriptorPoolHandle, error)
	DestroyDescriptorPool(pool DescriptorPoolHandle)
	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayoutHandle, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayoutHandle)
	AllocateDescriptorSet(pool DescriptorPoolHandle, layout DescriptorSetLayoutHandle) (DescriptorSetHandle, error)
	FreeDescriptorSet(pool DescriptorPoolHandle, set DescriptorSetHandle) error

	CreatePipelineLayout(setLayouts []DescriptorSetLayoutHandle) (PipelineLayoutHandle, error)
	DestroyPipelineLayout(layout PipelineLayoutHandle)
	CreateRayTracingPipeline(info RayTracingPipelineCreateInfo) (PipelineHandle, error)
	DestroyPipeline(pipeline PipelineHandle)

	// RayTracingShaderGroupHandles writes the handle of group firstGroup+i at
	// offset i*len(data)/groupCount.
	RayTracingShaderGroupHandles(pipeline PipelineHandle, firstGroup, groupCount uint32, data []byte) error
}
