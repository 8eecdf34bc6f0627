// Package jobfile loads command job definitions from a YAML file.
//
//	jobs:
//	  - name: backup
//	    schedule: "0 3 * * *"
//	    command: /usr/local/bin/backup.sh
//	    priority: 10
//	    timeout: 30m
//	    env:
//	      TARGET: s3://bucket
package jobfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/nexcron/internal/job"
)

// File is the document root.
type File struct {
	Jobs []Definition `yaml:"jobs"`
}

// Definition describes one command job.
type Definition struct {
	Name     string            `yaml:"name"`
	Schedule string            `yaml:"schedule"`
	Command  string            `yaml:"command"`
	Shell    string            `yaml:"shell,omitempty"`
	Priority int               `yaml:"priority"`
	Timeout  Duration          `yaml:"timeout,omitempty"`
	Enabled  *bool             `yaml:"enabled,omitempty"`
	Workdir  string            `yaml:"workdir,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
}

// IsEnabled reports whether the job is enabled; absent means enabled.
func (d Definition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Duration accepts either a Go duration string ("90s", "5m") or an integer
// number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds int
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: timeout must be seconds or a duration string", value.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid timeout %q: %w", value.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads and decodes the job file at path.
func Load(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	defs, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Decode reads job definitions. Unknown fields are rejected so typos do not
// silently change a job.
func Decode(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode job file: %w", err)
	}

	for i, d := range f.Jobs {
		if d.Name == "" {
			return nil, fmt.Errorf("job #%d: name is required", i+1)
		}
		if d.Command == "" {
			return nil, fmt.Errorf("job %q: command is required", d.Name)
		}
		if d.Timeout < 0 {
			return nil, fmt.Errorf("job %q: timeout cannot be negative", d.Name)
		}
	}
	return f.Jobs, nil
}

// Descriptor converts the definition into a registrable job descriptor.
func (d Definition) Descriptor() job.Descriptor {
	env := make([]string, 0, len(d.Env))
	for k, v := range d.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	return job.Descriptor{
		Name:     d.Name,
		Schedule: d.Schedule,
		Priority: d.Priority,
		Timeout:  time.Duration(d.Timeout),
		Enabled:  d.IsEnabled(),
		Job: &job.CommandJob{
			Command: d.Command,
			Shell:   d.Shell,
			Dir:     d.Workdir,
			Env:     env,
		},
	}
}

// Register adds every definition to reg, stopping at the first error.
func Register(reg *job.Registry, defs []Definition) error {
	for _, d := range defs {
		if err := reg.Register(d.Descriptor()); err != nil {
			return err
		}
	}
	return nil
}
