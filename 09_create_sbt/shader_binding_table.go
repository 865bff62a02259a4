package main

import (
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/rtexamples/rtutils"
)

func (app *HelloRayTracingApplication) createShaderBindingTable() error {
	var err error
	app.shaderBindings, err = rtutils.NewShaderBindingTable(app.rt, app.pipeline)
	if err != nil {
		return err
	}

	raygen, miss, hit := app.shaderBindings.Regions()
	for name, region := range map[string]rtutils.StridedRegion{"raygen": raygen, "miss": miss, "hit": hit} {
		logrus.WithFields(logrus.Fields{
			"address": region.Address,
			"stride":  region.Stride,
			"size":    region.Size,
		}).Debugf("%s SBT region", name)
	}

	logrus.WithFields(logrus.Fields{
		"device":       app.rt.DeviceName(),
		"handleSize":   app.shaderBindings.HandleSize,
		"handleStride": app.shaderBindings.HandleSizeAligned,
	}).Info("shader binding table ready")
	return nil
}
