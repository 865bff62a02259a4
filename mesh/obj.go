// Package mesh loads triangle meshes for the bottom-level acceleration structure.
package mesh

import (
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

type builder struct {
	decoder        *obj.Decoder
	uniqueVertices map[int]uint32
	mesh           rtutils.TriangleMesh
}

func (b *builder) addVertex(face obj.Face, faceIndex int) {
	vertInd := face.Vertices[faceIndex]
	index, vertexExists := b.uniqueVertices[vertInd]

	if !vertexExists {
		b.mesh.Vertices = append(b.mesh.Vertices, rtutils.Vertex{Pos: mgl32.Vec3{
			b.decoder.Vertices[vertInd*3],
			b.decoder.Vertices[vertInd*3+1],
			b.decoder.Vertices[vertInd*3+2],
		}})
		index = uint32(len(b.mesh.Vertices) - 1)
		b.uniqueVertices[vertInd] = index
	}

	b.mesh.Indices = append(b.mesh.Indices, index)
}

// LoadOBJ reads a Wavefront OBJ file from fsys and fan-triangulates every face. A
// material library next to the file, if present, is passed to the decoder but
// otherwise ignored.
func LoadOBJ(fsys fs.FS, name string) (rtutils.TriangleMesh, error) {
	meshFile, err := fsys.Open(name)
	if err != nil {
		return rtutils.TriangleMesh{}, errors.Wrapf(err, "open mesh %s", name)
	}
	defer meshFile.Close()

	var matReader io.Reader = strings.NewReader("")
	matName := strings.TrimSuffix(name, path.Ext(name)) + ".mtl"
	if matFile, err := fsys.Open(matName); err == nil {
		defer matFile.Close()
		matReader = matFile
	}

	decoder, err := obj.DecodeReader(meshFile, matReader)
	if err != nil {
		return rtutils.TriangleMesh{}, errors.Wrapf(err, "decode mesh %s", name)
	}

	b := &builder{
		decoder:        decoder,
		uniqueVertices: make(map[int]uint32),
	}
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				b.addVertex(face, 0)
				b.addVertex(face, i-1)
				b.addVertex(face, i)
			}
		}
	}

	if len(b.mesh.Indices) == 0 {
		return rtutils.TriangleMesh{}, errors.Newf("mesh %s has no faces", name)
	}

	logrus.WithFields(logrus.Fields{
		"mesh":      name,
		"vertices":  len(b.mesh.Vertices),
		"triangles": b.mesh.PrimitiveCount(),
	}).Debug("loaded mesh")

	return b.mesh, nil
}
