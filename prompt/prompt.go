// Package prompt holds the system instructions that anchor every conversation.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// WelcomeQuestion is the synthetic user turn used to produce the greeting.
const WelcomeQuestion = "¿Quién eres?"

//go:embed residuos_gt.txt
var wasteClassification string

// Default returns the Guatemala City waste-classification instructions.
func Default() string {
	return wasteClassification
}

// Load returns the instructions stored at path, or Default when path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading system prompt: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return text, nil
}
