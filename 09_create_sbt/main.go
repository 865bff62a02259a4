package main

import (
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/rtexamples/config"
)

func main() {
	runtime.LockOSThread()

	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		logrus.Fatalf("%+v\n", err)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetLevel(cfg.Level())

	app := &HelloRayTracingApplication{
		cfg: cfg,
	}

	err = app.Run()
	if err != nil {
		logrus.Fatalf("%+v\n", err)
	}
}
