package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/rtexamples/mesh"
	"github.com/vkngwrapper/rtexamples/rtutils"
)

func (app *HelloRayTracingApplication) loadMesh() (rtutils.TriangleMesh, error) {
	if app.cfg.Mesh == "" {
		return rtutils.DefaultTriangle(), nil
	}

	dir, name := filepath.Split(app.cfg.Mesh)
	if dir == "" {
		dir = "."
	}
	return mesh.LoadOBJ(os.DirFS(dir), name)
}

func (app *HelloRayTracingApplication) createBottomLevelAS() error {
	triangles, err := app.loadMesh()
	if err != nil {
		return err
	}

	app.bottomLevelAS, err = rtutils.BuildBottomLevel(app.rt, triangles)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"triangles": triangles.PrimitiveCount(),
		"address":   app.bottomLevelAS.Address,
	}).Debug("built BLAS")
	return nil
}

func (app *HelloRayTracingApplication) createTopLevelAS() error {
	var err error
	app.topLevelAS, err = rtutils.BuildTopLevel(app.rt, []rtutils.Instance{
		rtutils.DefaultInstance(app.bottomLevelAS.Address),
	})
	if err != nil {
		return err
	}

	logrus.WithField("address", app.topLevelAS.Address).Debug("built TLAS")
	return nil
}
