package template

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/g960059/ttguide/internal/model"
)

type operationsFile struct {
	Operations []operationEntry `yaml:"operations"`
}

type operationEntry struct {
	Name        string   `yaml:"name"`
	Command     string   `yaml:"command"`
	Channel     string   `yaml:"channel"`
	Description string   `yaml:"description"`
	Secrets     []string `yaml:"secrets,omitempty"`
}

// LoadFile reads user-defined operations from a YAML file. Entries without a
// channel target the main channel. A missing file yields no templates.
func LoadFile(fs afero.Fs, path string) ([]Template, error) {
	if path == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read operations %s: %w", path, err)
	}
	var f operationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse operations %s: %w", path, err)
	}
	out := make([]Template, 0, len(f.Operations))
	for i, op := range f.Operations {
		if op.Command == "" {
			return nil, fmt.Errorf("operations %s: entry %d (%s) has no command", path, i, op.Name)
		}
		channel := model.ChannelID(op.Channel)
		if channel == "" {
			channel = model.ChannelMain
		}
		out = append(out, Template{
			Name:        op.Name,
			Command:     op.Command,
			Channel:     channel,
			Description: op.Description,
			Secrets:     op.Secrets,
		})
	}
	return out, nil
}
