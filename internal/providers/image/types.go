package image

import (
	"strings"

	"creatorhub/internal/domain"
)

// TargetKind enumerates the ways a prediction can be submitted.
type TargetKind string

const (
	// TargetRun is an official model run synchronously within the provider's wait window.
	TargetRun TargetKind = "run"
	// TargetDeployment is a named deployment ("owner/name").
	TargetDeployment TargetKind = "deployment"
	// TargetVersion is a pinned model version.
	TargetVersion TargetKind = "version"
)

// PromptPlaceholder marks where the user's prompt goes in a template.
const PromptPlaceholder = "{prompt}"

// NoNegativePrompt disables the negative prompt field for models that reject it.
const NoNegativePrompt = "-"

const defaultNegativeField = "negative_prompt"

// Target is one submission attempt. Params are fully resolved.
type Target struct {
	Kind   TargetKind
	Ref    string
	Params map[string]any
}

func (t Target) String() string {
	return string(t.Kind) + " " + t.Ref
}

// Candidate is a versioned model with its own parameter overrides.
type Candidate struct {
	Version string         `json:"version"`
	Params  map[string]any `json:"params,omitempty"`
}

// ProviderConfig describes how one provider key is fulfilled.
type ProviderConfig struct {
	Key         domain.ProviderKey `json:"key"`
	Description string             `json:"description,omitempty"`
	Run         string             `json:"run,omitempty"`
	Deployment  string             `json:"deployment,omitempty"`
	Versions    []Candidate        `json:"versions,omitempty"`
	// Params apply to every target; candidate params override them.
	Params           map[string]any `json:"params,omitempty"`
	PromptTemplate   string         `json:"promptTemplate,omitempty"`
	NegativeTemplate string         `json:"negativeTemplate,omitempty"`
	// NegativeField names the input field for the negative prompt.
	// Empty means "negative_prompt"; NoNegativePrompt drops it.
	NegativeField string `json:"negativeField,omitempty"`
}

// Targets returns the attempt order: the synchronous run first, then the
// deployment, then versions as declared.
func (c ProviderConfig) Targets() []Target {
	targets := make([]Target, 0, len(c.Versions)+2)
	if c.Run != "" {
		targets = append(targets, Target{Kind: TargetRun, Ref: c.Run, Params: mergeParams(c.Params, nil)})
	}
	if c.Deployment != "" {
		targets = append(targets, Target{Kind: TargetDeployment, Ref: c.Deployment, Params: mergeParams(c.Params, nil)})
	}
	for _, cand := range c.Versions {
		targets = append(targets, Target{Kind: TargetVersion, Ref: cand.Version, Params: mergeParams(c.Params, cand.Params)})
	}
	return targets
}

// ApplyTemplate wraps the raw prompts with the configured templates.
// An empty negative prompt stays empty.
func (c ProviderConfig) ApplyTemplate(req domain.GenerationRequest) (string, string) {
	prompt := interpolate(c.PromptTemplate, req.Prompt)
	negative := ""
	if strings.TrimSpace(req.NegativePrompt) != "" {
		negative = interpolate(c.NegativeTemplate, req.NegativePrompt)
	}
	return prompt, negative
}

// Input builds the provider input for target.
func (c ProviderConfig) Input(target Target, req domain.GenerationRequest) map[string]any {
	input := mergeParams(target.Params, nil)
	prompt, negative := c.ApplyTemplate(req)
	input["prompt"] = prompt
	field := c.NegativeField
	if field == "" {
		field = defaultNegativeField
	}
	if negative != "" && field != NoNegativePrompt {
		input[field] = negative
	}
	return input
}

func interpolate(template, value string) string {
	if template == "" {
		return value
	}
	return strings.ReplaceAll(template, PromptPlaceholder, value)
}

func mergeParams(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override)+2)
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
