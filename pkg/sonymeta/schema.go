package sonymeta

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"
)

//go:embed schema.yaml
var schemaYAML []byte

type schemaEntry struct {
	ID    int    `yaml:"id"`
	Group string `yaml:"group"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
}

type schemaFile struct {
	Tags []schemaEntry `yaml:"tags"`
}

var schemaTable = mustLoadSchema()

func mustLoadSchema() map[uint16]schemaEntry {
	var sf schemaFile
	if err := yaml.Unmarshal(schemaYAML, &sf); err != nil {
		panic(fmt.Sprintf("sonymeta: invalid embedded schema.yaml: %s", err))
	}
	m := make(map[uint16]schemaEntry, len(sf.Tags))
	for _, e := range sf.Tags {
		m[uint16(e.ID)] = e
	}
	return m
}
