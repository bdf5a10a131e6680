package providers

import (
	"fmt"
	"strings"
)

// embedProviderNames lists the providers buildProvider knows how to construct.
var embedProviderNames = map[string]bool{
	"mock":   true,
	"openai": true,
	"gemini": true,
	"ollama": true,
}

type ProviderRef struct {
	Raw string
	// Name is the lowercased provider name.
	Name string
	// KeyAlias names the credential or host env var; empty uses the provider default.
	KeyAlias string
}

// ParseProviderList parses "name[:alias]|name[:alias]...". Repeated entries are
// kept once, in first-seen order. An empty list means the mock provider.
func ParseProviderList(raw string) ([]ProviderRef, error) {
	parts := strings.Split(raw, "|")
	out := make([]ProviderRef, 0, len(parts))
	seen := make(map[ProviderRef]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, alias, _ := strings.Cut(p, ":")
		ref := ProviderRef{
			Raw:      p,
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		}
		if !embedProviderNames[ref.Name] {
			return nil, fmt.Errorf("unsupported embedding provider %q", ref.Name)
		}
		key := ProviderRef{Name: ref.Name, KeyAlias: ref.KeyAlias}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out, nil
}
