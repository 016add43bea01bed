package compare

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/erg0nix/konsilium/internal/config/prompts"
)

type Expert struct {
	Name         string `yaml:"name"`
	Emoji        string `yaml:"emoji,omitempty"`
	MaxTokens    int    `yaml:"max_tokens,omitempty"`
	SystemPrompt string `yaml:"system_prompt"`
}

func (e Expert) Label() string {
	if e.Emoji == "" {
		return e.Name
	}
	return e.Emoji + " " + e.Name
}

type expertFile struct {
	Experts []Expert `yaml:"experts"`
}

// LoadExperts reads the panel from path, or the built-in panel when path is empty or missing.
func LoadExperts(path string) ([]Expert, error) {
	data := prompts.Experts

	if path != "" {
		fileData, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = fileData
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read experts: %w", err)
		}
	}

	return ParseExperts(data)
}

func ParseExperts(data []byte) ([]Expert, error) {
	var file expertFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse experts: %w", err)
	}

	if len(file.Experts) == 0 {
		return nil, errors.New("expert panel is empty")
	}

	for i, expert := range file.Experts {
		if strings.TrimSpace(expert.Name) == "" {
			return nil, fmt.Errorf("expert %d: name is required", i+1)
		}
		if strings.TrimSpace(expert.SystemPrompt) == "" {
			return nil, fmt.Errorf("expert %q: system_prompt is required", expert.Name)
		}
	}

	return file.Experts, nil
}
