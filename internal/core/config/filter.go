package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

type filterFile struct {
	Search model.SearchFilter `yaml:"search"`
}

// LoadFilter reads the initial search filter from a YAML file. An empty path
// returns the default filter.
func LoadFilter(path string) (model.SearchFilter, error) {
	if path == "" {
		return model.DefaultSearchFilter(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SearchFilter{}, fmt.Errorf("read filter file: %w", err)
	}

	var ff filterFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return model.SearchFilter{}, fmt.Errorf("parse filter file: %w", err)
	}
	f := ff.Search
	for _, dt := range f.DataTypes {
		if !dt.Valid() {
			return model.SearchFilter{}, fmt.Errorf("filter file: unknown data type %q", dt)
		}
	}
	f.DataTypes = model.DistinctDataTypes(f.DataTypes)
	if len(f.DataTypes) == 0 {
		f.DataTypes = model.DefaultSearchFilter().DataTypes
	}
	if df := f.DetectionFilter; df != nil && df.ConfidenceLevel != nil {
		c := df.ConfidenceLevel
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return model.SearchFilter{}, fmt.Errorf("filter file: confidence min %v > max %v", *c.Min, *c.Max)
		}
	}
	if f.Date != nil {
		d := f.Date.UTC()
		f.Date = &d
	}
	return f, nil
}
