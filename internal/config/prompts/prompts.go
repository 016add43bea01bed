package prompts

import (
	"os"
	"strings"
)

// Load reads a prompt override from path, returning fallback when path is empty or the file does not exist.
func Load(path string, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fallback, nil
		}
		return "", err
	}

	return string(data), nil
}

// Render substitutes $NAME placeholders in template with the given values.
func Render(template string, values map[string]string) string {
	content := template
	for name, value := range values {
		content = strings.ReplaceAll(content, "$"+name, value)
	}
	return strings.TrimSpace(content)
}
