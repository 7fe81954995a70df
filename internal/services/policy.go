package services

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policies/default.yaml
var defaultPolicy []byte

// EvaluationPolicy is the fixed system text given to both evaluator stages.
type EvaluationPolicy struct {
	Version           string `yaml:"version"`
	Primary           string `yaml:"primary"`
	Secondary         string `yaml:"secondary"`
	OutputInstruction string `yaml:"output_instruction"`
}

// LoadPolicy reads the policy at path, or the built-in one when path is empty.
func LoadPolicy(path string) (*EvaluationPolicy, error) {
	data := defaultPolicy
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		data = raw
		log.Printf("📋 Using evaluation policy from %s\n", path)
	}

	var policy EvaluationPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if strings.TrimSpace(policy.Primary) == "" || strings.TrimSpace(policy.Secondary) == "" {
		return nil, fmt.Errorf("policy must define both primary and secondary prompts")
	}
	return &policy, nil
}

// MustDefaultPolicy returns the built-in policy.
func MustDefaultPolicy() *EvaluationPolicy {
	p, err := LoadPolicy("")
	if err != nil {
		panic(err)
	}
	return p
}

func (p *EvaluationPolicy) withInstruction(text string) string {
	if p.OutputInstruction == "" {
		return text
	}
	return strings.TrimRight(text, "\n") + "\n\n" + p.OutputInstruction
}
