package handlers

import (
	"net/http"

	"creatorhub/internal/domain"
)

type providerTarget struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

type providerInfo struct {
	Key         domain.ProviderKey `json:"key"`
	Description string             `json:"description,omitempty"`
	Targets     []providerTarget   `json:"targets"`
}

func (a *App) Providers(w http.ResponseWriter, r *http.Request) {
	if a.Catalog == nil {
		a.error(w, http.StatusServiceUnavailable, "provider_unavailable", "no provider catalog loaded")
		return
	}
	keys := a.Catalog.Keys()
	out := make([]providerInfo, 0, len(keys))
	for _, key := range keys {
		cfg, _ := a.Catalog.Get(key)
		info := providerInfo{Key: key, Description: cfg.Description}
		for _, t := range cfg.Targets() {
			info.Targets = append(info.Targets, providerTarget{Kind: string(t.Kind), Ref: t.Ref})
		}
		out = append(out, info)
	}
	a.json(w, http.StatusOK, map[string]any{
		"default":   a.Catalog.Default(),
		"providers": out,
	})
}
