package rtutils

import (
	"encoding/binary"
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fixed shader group order. The SBT regions are laid out in this order.
const (
	GroupRaygen = iota
	GroupMiss
	GroupClosestHit

	GroupCount
)

const spirvMagic uint32 = 0x07230203

// ShaderSpec names one shader file and where it lands in the registry.
type ShaderSpec struct {
	ShaderIndex int
	GroupIndex  int
	Filename    string
	Stage       ShaderStageFlags
}

// DefaultShaders is the raygen / miss / closest hit set loaded by the tutorial.
var DefaultShaders = []ShaderSpec{
	{ShaderIndex: GroupRaygen, GroupIndex: GroupRaygen, Filename: "raygen.rgen.spv", Stage: StageRaygen},
	{ShaderIndex: GroupMiss, GroupIndex: GroupMiss, Filename: "miss.rmiss.spv", Stage: StageMiss},
	{ShaderIndex: GroupClosestHit, GroupIndex: GroupClosestHit, Filename: "closesthit.rchit.spv", Stage: StageClosestHit},
}

// ShaderRegistry holds the pipeline's shader stages and groups, indexed the way the
// pipeline will see them.
type ShaderRegistry struct {
	device Device
	fsys   fs.FS

	Stages []ShaderStage
	Groups []ShaderGroup
}

func unusedGroup() ShaderGroup {
	return ShaderGroup{
		Type:         ShaderGroupTypeGeneral,
		General:      ShaderUnused,
		ClosestHit:   ShaderUnused,
		AnyHit:       ShaderUnused,
		Intersection: ShaderUnused,
	}
}

// NewShaderRegistry makes a registry with count stage and group slots. Shader files
// are read from fsys.
func NewShaderRegistry(device Device, fsys fs.FS, count int) *ShaderRegistry {
	r := &ShaderRegistry{
		device: device,
		fsys:   fsys,
		Stages: make([]ShaderStage, count),
		Groups: make([]ShaderGroup, count),
	}
	for i := range r.Groups {
		r.Groups[i] = unusedGroup()
	}
	return r
}

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("shader code is %d bytes, not a whole number of words", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}

	if byteCode[0] != spirvMagic {
		return nil, errors.Newf("bad SPIR-V magic number %#08x", byteCode[0])
	}
	return byteCode, nil
}

func (r *ShaderRegistry) readShader(filename string) ([]uint32, error) {
	data, err := fs.ReadFile(r.fsys, filename)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "create shader module %s", filename), ErrShaderLoadFailed)
	}

	code, err := bytesToBytecode(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "create shader module %s", filename), ErrShaderLoadFailed)
	}
	return code, nil
}

func (r *ShaderRegistry) register(shaderIndex, groupIndex int, filename string, stage ShaderStageFlags, code []uint32) error {
	if shaderIndex < 0 || shaderIndex >= len(r.Stages) {
		return errors.Newf("shader index %d out of range [0, %d)", shaderIndex, len(r.Stages))
	}
	if groupIndex < 0 || groupIndex >= len(r.Groups) {
		return errors.Newf("group index %d out of range [0, %d)", groupIndex, len(r.Groups))
	}

	module, err := r.device.CreateShaderModule(code)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "create shader module %s", filename), ErrShaderLoadFailed)
	}

	if old := r.Stages[shaderIndex].Module; old != 0 {
		r.device.DestroyShaderModule(old)
	}
	r.Stages[shaderIndex] = ShaderStage{
		Stage:  stage,
		Module: module,
		Name:   "main",
	}

	group := r.Groups[groupIndex]
	group.General = ShaderUnused
	group.ClosestHit = ShaderUnused
	group.AnyHit = ShaderUnused
	group.Intersection = ShaderUnused
	switch stage {
	case StageRaygen, StageMiss:
		group.Type = ShaderGroupTypeGeneral
		group.General = uint32(shaderIndex)
	case StageClosestHit:
		group.Type = ShaderGroupTypeTrianglesHitGroup
		group.ClosestHit = uint32(shaderIndex)
	}
	r.Groups[groupIndex] = group

	logrus.WithFields(logrus.Fields{
		"file":  filename,
		"stage": stage,
		"group": groupIndex,
	}).Debug("registered shader")
	return nil
}

// AddShader loads one SPIR-V file into slot shaderIndex and resets the shader slots
// of group groupIndex to reference it according to stage. Stages other than raygen,
// miss and closest hit leave the group type as it was.
func (r *ShaderRegistry) AddShader(shaderIndex, groupIndex int, filename string, stage ShaderStageFlags) error {
	code, err := r.readShader(filename)
	if err != nil {
		return err
	}
	return r.register(shaderIndex, groupIndex, filename, stage, code)
}

// AddShaders reads every file concurrently, then registers them in order. Nothing is
// registered if any file fails to load.
func (r *ShaderRegistry) AddShaders(specs []ShaderSpec) error {
	codes := make([][]uint32, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			code, err := r.readShader(spec.Filename)
			if err != nil {
				return err
			}
			codes[i] = code
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, spec := range specs {
		err := r.register(spec.ShaderIndex, spec.GroupIndex, spec.Filename, spec.Stage, codes[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases every loaded shader module.
func (r *ShaderRegistry) Destroy() {
	if r == nil {
		return
	}

	for i := range r.Stages {
		if r.Stages[i].Module != 0 {
			r.device.DestroyShaderModule(r.Stages[i].Module)
		}
		r.Stages[i] = ShaderStage{}
	}
}
