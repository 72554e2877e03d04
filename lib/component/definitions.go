// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition is one entry of a definitions file.
type Definition struct {
	Name              string   `yaml:"name"`
	Repo              string   `yaml:"repo"`
	Ref               string   `yaml:"ref,omitempty"`
	Version           string   `yaml:"version,omitempty"`
	BuildMode         string   `yaml:"build-mode,omitempty"`
	Prefix            string   `yaml:"prefix,omitempty"`
	MaxJobs           int      `yaml:"max-jobs,omitempty"`
	Hash              string   `yaml:"hash,omitempty"`
	BuildDepends      []string `yaml:"build-depends,omitempty"`
	ConfigureCommands []string `yaml:"configure-commands,omitempty"`
	BuildCommands     []string `yaml:"build-commands,omitempty"`
	InstallCommands   []string `yaml:"install-commands,omitempty"`
}

// Commands returns the component's commands in execution order:
// configure, build, install.
func (d *Definition) Commands() []string {
	commands := make([]string, 0, len(d.ConfigureCommands)+len(d.BuildCommands)+len(d.InstallCommands))
	commands = append(commands, d.ConfigureCommands...)
	commands = append(commands, d.BuildCommands...)
	commands = append(commands, d.InstallCommands...)
	return commands
}

// Definitions is a set of component definitions loaded from YAML. It
// stands in for a full dependency resolver: it looks up build
// dependencies by name and reports their declared prefixes, but does
// not order builds.
type Definitions struct {
	byName map[string]*Definition
}

type definitionsFile struct {
	Components []*Definition `yaml:"components"`
}

// LoadDefinitions reads a definitions file.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions: %w", err)
	}
	definitions, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("parsing definitions %s: %w", path, err)
	}
	return definitions, nil
}

// ParseDefinitions parses definitions YAML. Names must be unique.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	definitions := &Definitions{byName: make(map[string]*Definition, len(file.Components))}
	for i, definition := range file.Components {
		if definition == nil || definition.Name == "" {
			return nil, fmt.Errorf("components[%d]: name is required", i)
		}
		if _, exists := definitions.byName[definition.Name]; exists {
			return nil, fmt.Errorf("components[%d]: duplicate name %q", i, definition.Name)
		}
		definitions.byName[definition.Name] = definition
	}
	return definitions, nil
}

// Names returns all defined component names, sorted.
func (d *Definitions) Names() []string {
	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the raw definition for name.
func (d *Definitions) Lookup(name string) (*Definition, bool) {
	definition, ok := d.byName[name]
	return definition, ok
}

// Resolve builds a validated Component for name, with each build
// dependency's prefix looked up from its own definition.
func (d *Definitions) Resolve(name string) (*Component, *Definition, error) {
	definition, ok := d.byName[name]
	if !ok {
		return nil, nil, fmt.Errorf("component %q is not defined", name)
	}

	dependencies := make([]Dependency, 0, len(definition.BuildDepends))
	for _, dependencyName := range definition.BuildDepends {
		dependency, ok := d.byName[dependencyName]
		if !ok {
			return nil, nil, fmt.Errorf("component %q: build dependency %q is not defined", name, dependencyName)
		}
		dependencies = append(dependencies, Dependency{
			Name:   dependency.Name,
			Prefix: dependency.Prefix,
		})
	}

	component, err := New(Spec{
		Name:         definition.Name,
		Repo:         definition.Repo,
		Ref:          definition.Ref,
		Version:      definition.Version,
		Mode:         BuildMode(definition.BuildMode),
		Prefix:       definition.Prefix,
		MaxJobs:      definition.MaxJobs,
		Hash:         definition.Hash,
		Dependencies: dependencies,
	})
	if err != nil {
		return nil, nil, err
	}
	return component, definition, nil
}
