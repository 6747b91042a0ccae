package image

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"creatorhub/internal/domain"
)

// DefaultProviderKey is used when a request names no provider.
const DefaultProviderKey domain.ProviderKey = "flux"

// ErrInvalidCatalog reports a provider catalogue rejected at load time.
var ErrInvalidCatalog = errors.New("invalid provider catalog")

// Catalog is the immutable set of configured providers.
type Catalog struct {
	providers  map[domain.ProviderKey]ProviderConfig
	defaultKey domain.ProviderKey
}

type catalogFile struct {
	Default   string           `json:"default"`
	Providers []ProviderConfig `json:"providers"`
}

// DefaultProviders is the built-in catalogue.
func DefaultProviders() []ProviderConfig {
	sdxl := []Candidate{
		{
			Version: "stability-ai/sdxl:39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b",
			Params:  map[string]any{"width": 1024, "height": 1024, "num_inference_steps": 30},
		},
		{
			Version: "stability-ai/stable-diffusion:ac732df83cea7fff18b8472768c88ad041fa750ff7682a21affe81863cbe77e4",
			Params:  map[string]any{"width": 768, "height": 768},
		},
	}
	return []ProviderConfig{
		{
			Key:           "flux",
			Description:   "FLUX.1 schnell, synchronous",
			Run:           "black-forest-labs/flux-schnell",
			Params:        map[string]any{"num_outputs": 1, "aspect_ratio": "1:1", "output_format": "png"},
			NegativeField: NoNegativePrompt,
		},
		{
			Key:         "sdxl",
			Description: "Stable Diffusion XL with SD 2.1 fallback",
			Versions:    sdxl,
			Params:      map[string]any{"num_outputs": 1},
		},
		{
			Key:              "studio",
			Description:      "Product shots for social posts",
			Deployment:       "creatorhub/studio-xl",
			Versions:         sdxl,
			Params:           map[string]any{"num_outputs": 1},
			PromptTemplate:   "professional social media product photo, {prompt}, studio lighting, high detail",
			NegativeTemplate: "{prompt}, blurry, watermark, text",
		},
	}
}

// NewCatalog validates providers and indexes them by key.
func NewCatalog(providers []ProviderConfig, defaultKey domain.ProviderKey) (*Catalog, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrInvalidCatalog)
	}
	c := &Catalog{providers: make(map[domain.ProviderKey]ProviderConfig, len(providers))}
	for i, p := range providers {
		p.Key = normalizeKey(string(p.Key))
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("%w: providers[%d]: %v", ErrInvalidCatalog, i, err)
		}
		if _, dup := c.providers[p.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %q", ErrInvalidCatalog, p.Key)
		}
		c.providers[p.Key] = p
	}
	c.defaultKey = normalizeKey(string(defaultKey))
	if c.defaultKey == "" {
		c.defaultKey = DefaultProviderKey
	}
	if _, ok := c.providers[c.defaultKey]; !ok {
		return nil, fmt.Errorf("%w: default provider %q is not configured", ErrInvalidCatalog, c.defaultKey)
	}
	return c, nil
}

// LoadCatalog reads a JSON catalogue from path, or returns the built-in one
// when path is empty. defaultKey overrides the file's default if set.
func LoadCatalog(path string, defaultKey string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewCatalog(DefaultProviders(), domain.ProviderKey(defaultKey))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}
	var file catalogFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	key := strings.TrimSpace(defaultKey)
	if key == "" {
		key = file.Default
	}
	return NewCatalog(file.Providers, domain.ProviderKey(key))
}

// Default returns the default provider key.
func (c *Catalog) Default() domain.ProviderKey {
	return c.defaultKey
}

// Keys lists configured provider keys in sorted order.
func (c *Catalog) Keys() []domain.ProviderKey {
	keys := make([]domain.ProviderKey, 0, len(c.providers))
	for k := range c.providers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Get returns the provider for an exact, already normalized key.
func (c *Catalog) Get(key domain.ProviderKey) (ProviderConfig, bool) {
	p, ok := c.providers[key]
	return p, ok
}

// Resolve maps a requested key to a provider. A blank key selects the
// default. An unknown key is an error when strict, otherwise the default.
func (c *Catalog) Resolve(requested string, strict bool) (ProviderConfig, error) {
	key := normalizeKey(requested)
	if key == "" {
		return c.providers[c.defaultKey], nil
	}
	if p, ok := c.providers[key]; ok {
		return p, nil
	}
	if strict {
		return ProviderConfig{}, domain.UnknownProvider(key)
	}
	return c.providers[c.defaultKey], nil
}

func validateProvider(p ProviderConfig) error {
	if p.Key == "" {
		return errors.New("key is required")
	}
	if p.Run == "" && p.Deployment == "" && len(p.Versions) == 0 {
		return fmt.Errorf("provider %q has no run, deployment or versions", p.Key)
	}
	if p.Run != "" && !isOwnerName(p.Run) {
		return fmt.Errorf("provider %q: run %q must be owner/name", p.Key, p.Run)
	}
	if p.Deployment != "" && !isOwnerName(p.Deployment) {
		return fmt.Errorf("provider %q: deployment %q must be owner/name", p.Key, p.Deployment)
	}
	for i, cand := range p.Versions {
		if strings.TrimSpace(cand.Version) == "" {
			return fmt.Errorf("provider %q: versions[%d] is empty", p.Key, i)
		}
	}
	if p.PromptTemplate != "" && !strings.Contains(p.PromptTemplate, PromptPlaceholder) {
		return fmt.Errorf("provider %q: promptTemplate must contain %s", p.Key, PromptPlaceholder)
	}
	if p.NegativeTemplate != "" && !strings.Contains(p.NegativeTemplate, PromptPlaceholder) {
		return fmt.Errorf("provider %q: negativeTemplate must contain %s", p.Key, PromptPlaceholder)
	}
	return nil
}

func isOwnerName(ref string) bool {
	owner, name, ok := strings.Cut(ref, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}

func normalizeKey(key string) domain.ProviderKey {
	return domain.ProviderKey(strings.ToLower(strings.TrimSpace(key)))
}
