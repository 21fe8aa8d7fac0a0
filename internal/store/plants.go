package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTargetMoisture applies when a plant file entry omits target_moisture.
const DefaultTargetMoisture = 50.0

type plantFile struct {
	Plants []Plant `yaml:"plants"`
}

// LoadPlants reads a YAML plant registry from path.
func LoadPlants(path string) ([]Plant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plant file: %w", err)
	}
	plants, err := ParsePlants(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plants, nil
}

// ParsePlants decodes and validates a YAML plant registry.
//
//	plants:
//	  - id: basil
//	    name: Kitchen Basil
//	    type: herb
//	    device_id: esp32-001
//	    target_moisture: 55
func ParsePlants(data []byte) ([]Plant, error) {
	var f plantFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plants: %w", err)
	}
	if len(f.Plants) == 0 {
		return nil, fmt.Errorf("no plants defined")
	}

	ids := make(map[string]bool, len(f.Plants))
	devices := make(map[string]bool, len(f.Plants))
	for i := range f.Plants {
		p := &f.Plants[i]
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("plant %d: missing id", i)
		case p.Name == "":
			return nil, fmt.Errorf("plant %q: missing name", p.ID)
		case p.DeviceID == "":
			return nil, fmt.Errorf("plant %q: missing device_id", p.ID)
		case ids[p.ID]:
			return nil, fmt.Errorf("plant %q: duplicate id", p.ID)
		case devices[p.DeviceID]:
			return nil, fmt.Errorf("plant %q: device %q already assigned", p.ID, p.DeviceID)
		case p.TargetMoisture < 0 || p.TargetMoisture > 100:
			return nil, fmt.Errorf("plant %q: target_moisture %v outside 0-100", p.ID, p.TargetMoisture)
		}
		if p.TargetMoisture == 0 {
			p.TargetMoisture = DefaultTargetMoisture
		}
		ids[p.ID] = true
		devices[p.DeviceID] = true
	}
	return f.Plants, nil
}
