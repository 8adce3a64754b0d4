package dicom

import (
	"dosecast/pkg/dose"
)

// OpenVolume reads the RTDose file at path into a new volume limited to
// maxVoxels samples
func OpenVolume(path string, maxVoxels int, verbose bool) (*dose.Volume, error) {
	vol := dose.New()
	vol.Verbose = verbose
	vol.SetMaxVoxels(maxVoxels)
	if err := vol.Load(NewReader(verbose), path); err != nil {
		return nil, err
	}
	return vol, nil
}
