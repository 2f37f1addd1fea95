package parser

import (
	"fmt"
	"sort"
	"strings"
)

type LanguageSpec struct {
	Name       string
	Extensions []string
	Enabled    bool
}

type LanguageOverride struct {
	Enabled    *bool
	Extensions []string
}

func DefaultLanguageRegistry() map[string]LanguageSpec {
	return map[string]LanguageSpec{
		"javascript": {
			Name:       "javascript",
			Extensions: []string{".js", ".cjs", ".mjs"},
			Enabled:    true,
		},
		"typescript": {
			Name:       "typescript",
			Extensions: []string{".ts", ".cts", ".mts"},
			Enabled:    true,
		},
		"tsx": {
			Name:       "tsx",
			Extensions: []string{".tsx"},
			Enabled:    false,
		},
	}
}

// BuildLanguageRegistry applies config overrides on top of the defaults.
func BuildLanguageRegistry(overrides map[string]LanguageOverride) (map[string]LanguageSpec, error) {
	registry := DefaultLanguageRegistry()

	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, rawID := range ids {
		override := overrides[rawID]
		id := strings.ToLower(strings.TrimSpace(rawID))
		spec, ok := registry[id]
		if !ok {
			return nil, fmt.Errorf("unknown language %q", rawID)
		}
		if override.Enabled != nil {
			spec.Enabled = *override.Enabled
		}
		if len(override.Extensions) > 0 {
			exts := make([]string, 0, len(override.Extensions))
			for _, ext := range override.Extensions {
				ext = strings.ToLower(strings.TrimSpace(ext))
				if ext == "" {
					continue
				}
				if !strings.HasPrefix(ext, ".") {
					return nil, fmt.Errorf("language %q: extension %q must start with '.'", id, ext)
				}
				exts = append(exts, ext)
			}
			spec.Extensions = exts
		}
		registry[id] = spec
	}

	owners := make(map[string]string)
	for _, id := range sortedIDs(registry) {
		spec := registry[id]
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			if owner, taken := owners[ext]; taken {
				return nil, fmt.Errorf("extension %q claimed by both %q and %q", ext, owner, id)
			}
			owners[ext] = id
		}
	}
	return registry, nil
}

func cloneLanguageRegistry(in map[string]LanguageSpec) map[string]LanguageSpec {
	out := make(map[string]LanguageSpec, len(in))
	for id, spec := range in {
		copySpec := spec
		copySpec.Extensions = append([]string(nil), spec.Extensions...)
		out[id] = copySpec
	}
	return out
}

func sortedIDs(registry map[string]LanguageSpec) []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
