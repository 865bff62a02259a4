package rtutils

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Pos mgl32.Vec3
}

// VertexStride is the size of one packed Vertex.
const VertexStride = 12

// TriangleMesh is an indexed triangle list.
type TriangleMesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// DefaultTriangle is the single triangle the tutorial traces against.
func DefaultTriangle() TriangleMesh {
	return TriangleMesh{
		Vertices: []Vertex{
			{Pos: mgl32.Vec3{1, 1, 0}},
			{Pos: mgl32.Vec3{-1, 1, 0}},
			{Pos: mgl32.Vec3{0, -1, 0}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func (m TriangleMesh) PrimitiveCount() uint32 {
	return uint32(len(m.Indices) / 3)
}

func (m TriangleMesh) vertexBytes() []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, m.Vertices)
	return buf.Bytes()
}

func (m TriangleMesh) indexBytes() []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, m.Indices)
	return buf.Bytes()
}

// TransformMatrix is a 3x4 row-major affine transform.
type TransformMatrix [3][4]float32

// TransformFromMat4 drops the last row of a (column-major) mgl32 matrix.
func TransformFromMat4(m mgl32.Mat4) TransformMatrix {
	var t TransformMatrix
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			t[row][col] = m.At(row, col)
		}
	}
	return t
}

func IdentityTransform() TransformMatrix {
	return TransformFromMat4(mgl32.Ident4())
}

// InstanceSize is the size of one packed Instance record.
const InstanceSize = 64

// Instance is one top-level instance record referencing a bottom-level structure.
type Instance struct {
	Transform TransformMatrix
	// CustomIndex and SBTRecordOffset are 24-bit fields.
	CustomIndex     uint32
	Mask            uint8
	SBTRecordOffset uint32
	Flags           GeometryInstanceFlags
	// AccelerationStructureReference is the device address of the referenced BLAS.
	AccelerationStructureReference DeviceAddress
}

// DefaultInstance references blas with an identity transform, full visibility mask,
// SBT record offset 0 and back-face culling disabled.
func DefaultInstance(blas DeviceAddress) Instance {
	return Instance{
		Transform:                      IdentityTransform(),
		CustomIndex:                    0,
		Mask:                           0xFF,
		SBTRecordOffset:                0,
		Flags:                          GeometryInstanceTriangleFacingCullDisable,
		AccelerationStructureReference: blas,
	}
}

// AppendBytes appends the device layout of the instance to b.
func (i Instance) AppendBytes(b []byte) []byte {
	for _, row := range i.Transform {
		for _, v := range row {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
		}
	}
	b = binary.LittleEndian.AppendUint32(b, i.CustomIndex&0xFFFFFF|uint32(i.Mask)<<24)
	b = binary.LittleEndian.AppendUint32(b, i.SBTRecordOffset&0xFFFFFF|uint32(i.Flags)<<24)
	b = binary.LittleEndian.AppendUint64(b, uint64(i.AccelerationStructureReference))
	return b
}

const geometryInputUsage = BufferUsageAccelerationStructureBuildInputReadOnly | BufferUsageShaderDeviceAddress
const hostMemory = MemoryPropertyHostVisible | MemoryPropertyHostCoherent

// BuildBottomLevel uploads mesh into device-addressable buffers and builds a BLAS
// over it. The input buffers are released once the build has completed.
func BuildBottomLevel(device Device, mesh TriangleMesh) (*AccelStruct, error) {
	if len(mesh.Indices) == 0 || len(mesh.Indices)%3 != 0 {
		return nil, errors.Newf("createBottomLevelAS: index count %d is not a positive multiple of 3", len(mesh.Indices))
	}
	for _, index := range mesh.Indices {
		if int(index) >= len(mesh.Vertices) {
			return nil, errors.Newf("createBottomLevelAS: index %d out of range for %d vertices", index, len(mesh.Vertices))
		}
	}

	vertexData := mesh.vertexBytes()
	vertexBuffer, err := NewBuffer(device, uint64(len(vertexData)), geometryInputUsage, hostMemory, vertexData)
	if err != nil {
		return nil, errors.Wrap(err, "createBottomLevelAS: vertex buffer")
	}
	defer vertexBuffer.Destroy()

	indexData := mesh.indexBytes()
	indexBuffer, err := NewBuffer(device, uint64(len(indexData)), geometryInputUsage, hostMemory, indexData)
	if err != nil {
		return nil, errors.Wrap(err, "createBottomLevelAS: index buffer")
	}
	defer indexBuffer.Destroy()

	geometry := Geometry{
		Type: GeometryTypeTriangles,
		Triangles: TrianglesData{
			VertexFormat: FormatR32G32B32SignedFloat,
			VertexData:   vertexBuffer.Address,
			VertexStride: VertexStride,
			MaxVertex:    uint32(len(mesh.Vertices)),
			IndexType:    IndexTypeUInt32,
			IndexData:    indexBuffer.Address,
		},
		Flags: GeometryOpaque,
	}

	return BuildAccelStruct(device, AccelerationStructureTypeBottomLevel, geometry, mesh.PrimitiveCount())
}

// BuildTopLevel uploads the instance records and builds a TLAS over them. Every
// referenced BLAS must already be built.
func BuildTopLevel(device Device, instances []Instance) (*AccelStruct, error) {
	if len(instances) == 0 {
		return nil, errors.New("createTopLevelAS: no instances")
	}

	data := make([]byte, 0, len(instances)*InstanceSize)
	for i, instance := range instances {
		if instance.AccelerationStructureReference == 0 {
			return nil, errors.Newf("createTopLevelAS: instance %d does not reference a built acceleration structure", i)
		}
		data = instance.AppendBytes(data)
	}

	instanceBuffer, err := NewBuffer(device, uint64(len(data)), geometryInputUsage, hostMemory, data)
	if err != nil {
		return nil, errors.Wrap(err, "createTopLevelAS: instance buffer")
	}
	defer instanceBuffer.Destroy()

	geometry := Geometry{
		Type: GeometryTypeInstances,
		Instances: InstancesData{
			ArrayOfPointers: false,
			Data:            instanceBuffer.Address,
		},
		Flags: GeometryOpaque,
	}

	return BuildAccelStruct(device, AccelerationStructureTypeTopLevel, geometry, uint32(len(instances)))
}
