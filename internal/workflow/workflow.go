// Package workflow renders the Argo workflow that runs a researcher's image
// against the compiled enclave data and exports its results.
//
// The workflow has three templates: the step sequence, the researcher
// container, and an export container copying the enclave output directory
// to the results bucket.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultOutputBucket = "raise-data"
	DefaultExportImage  = "amazon/aws-cli:latest"

	dataVolume = "enclave-data"
	dataMount  = "/data"
	outputDir  = "/data/enclave-output/"
)

// Params are the inputs of one workflow.
type Params struct {
	Prefix       string `validate:"required"` // results location under enclave-outputs/
	Image        string `validate:"required"` // researcher image
	Command      string `validate:"required"` // JSON array, e.g. ["python", "./run.py"]
	OutputBucket string `validate:"required"`
	ExportImage  string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Workflow is the subset of the Argo Workflow resource this system emits.
type Workflow struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

type Metadata struct {
	GenerateName string `yaml:"generateName"`
}

type Spec struct {
	Entrypoint string     `yaml:"entrypoint"`
	Volumes    []Volume   `yaml:"volumes"`
	Templates  []Template `yaml:"templates"`
}

type Volume struct {
	Name     string    `yaml:"name"`
	EmptyDir *EmptyDir `yaml:"emptyDir,omitempty"`
}

type EmptyDir struct{}

type Template struct {
	Name      string     `yaml:"name"`
	Steps     [][]Step   `yaml:"steps,omitempty"`
	Container *Container `yaml:"container,omitempty"`
}

type Step struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

type Container struct {
	Image        string        `yaml:"image"`
	Command      []string      `yaml:"command"`
	VolumeMounts []VolumeMount `yaml:"volumeMounts"`
}

type VolumeMount struct {
	Name      string `yaml:"name"`
	MountPath string `yaml:"mountPath"`
}

// ParseCommand decodes a command given as a JSON array of strings.
func ParseCommand(s string) ([]string, error) {
	var cmd []string
	if err := json.Unmarshal([]byte(s), &cmd); err != nil {
		return nil, fmt.Errorf("command must be a JSON array of strings: %w", err)
	}
	if len(cmd) == 0 {
		return nil, errors.New("command is empty")
	}
	return cmd, nil
}

// ExportCommand returns the shell command copying results to the bucket.
func ExportCommand(bucket, prefix string) string {
	return fmt.Sprintf("aws s3 cp --recursive %s s3://%s/enclave-outputs/%s",
		outputDir, bucket, strings.Trim(prefix, "/"))
}

// New builds the workflow for p. Empty bucket and export image fall back to
// their defaults.
func New(p Params) (*Workflow, error) {
	if p.OutputBucket == "" {
		p.OutputBucket = DefaultOutputBucket
	}
	if p.ExportImage == "" {
		p.ExportImage = DefaultExportImage
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Field()
			}
			return nil, fmt.Errorf("workflow parameters missing: %s", strings.Join(fields, ", "))
		}
		return nil, err
	}

	command, err := ParseCommand(p.Command)
	if err != nil {
		return nil, err
	}

	mounts := []VolumeMount{{Name: dataVolume, MountPath: dataMount}}
	return &Workflow{
		APIVersion: "argoproj.io/v1alpha1",
		Kind:       "Workflow",
		Metadata:   Metadata{GenerateName: "enclave-"},
		Spec: Spec{
			Entrypoint: "enclave",
			Volumes:    []Volume{{Name: dataVolume, EmptyDir: &EmptyDir{}}},
			Templates: []Template{
				{
					Name: "enclave",
					Steps: [][]Step{
						{{Name: "analyze", Template: "researcher"}},
						{{Name: "export", Template: "export"}},
					},
				},
				{
					Name: "researcher",
					Container: &Container{
						Image:        p.Image,
						Command:      command,
						VolumeMounts: mounts,
					},
				},
				{
					Name: "export",
					Container: &Container{
						Image:        p.ExportImage,
						Command:      []string{"sh", "-c", ExportCommand(p.OutputBucket, p.Prefix)},
						VolumeMounts: mounts,
					},
				},
			},
		},
	}, nil
}

// Render writes the workflow as YAML.
func (w *Workflow) Render(out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(w); err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	return enc.Close()
}
