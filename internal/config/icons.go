package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/parksavvy/internal/availability"
)

// LoadIcons reads the marker icon table.  An empty path yields the
// defaults; entries missing from the file keep their default.
//
//	has_space: https://cdn.example.com/green.png
//	no_space:  https://cdn.example.com/red.png
//	unknown:   https://cdn.example.com/gray.png
func LoadIcons(path string) (availability.IconSet, error) {
	if path == "" {
		return availability.DefaultIcons, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return availability.IconSet{}, fmt.Errorf("read icons file: %w", err)
	}
	var set availability.IconSet
	if err := yaml.Unmarshal(b, &set); err != nil {
		return availability.IconSet{}, fmt.Errorf("parse icons file %s: %w", path, err)
	}
	return set.WithDefaults(), nil
}
