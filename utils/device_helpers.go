package utils

import (
	"github.com/notargets/FFTKernel/logging"
	"github.com/notargets/gocca"
)

// TestBackends are tried in order by CreateTestDevice
var TestBackends = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	log := logging.For("utils")
	for _, props := range TestBackends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			log.Infof("created %s device", device.Mode())
			return device
		}
		log.Debugf("device %s unavailable: %v", props, err)
	}

	// Serial is always built into OCCA
	panic("Failed to create any Device")
}
