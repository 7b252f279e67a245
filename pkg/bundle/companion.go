package bundle

import "github.com/blacktop/kextforge/pkg/catalog"

// CompanionDescriptor returns the descriptor of the catalog's companion bundle.
// Kexts carry the OSBundle keys and an IOKit personality matching every known
// device id; frameworks carry only the CFBundle fields.
func CompanionDescriptor(cat *catalog.Catalog, kind Kind) Descriptor {
	c := cat.Companion
	d := Descriptor{
		Identifier:   c.Identifier,
		Executable:   c.Name,
		Version:      c.BundleVersion,
		ShortVersion: c.BundleVersion,
		MinimumOS:    c.MinimumOS,
		Kind:         kind,
	}
	if kind != Kext {
		return d
	}

	personality := map[string]any{
		"CFBundleIdentifier": c.Identifier,
		"IOClass":            c.Name,
		"IOProviderClass":    "IOPCIDevice",
	}
	if match := cat.PCIPrimaryMatch(); match != "" {
		personality["IOPCIPrimaryMatch"] = match
	}
	d.Extra = map[string]any{
		"OSBundleRequired":      "Safe Boot",
		"OSBundleAllowUserLoad": true,
		"IOKitPersonalities": map[string]any{
			c.Name: personality,
		},
	}
	if len(c.Libraries) > 0 {
		libs := make(map[string]any, len(c.Libraries))
		for id, v := range c.Libraries {
			libs[id] = v
		}
		d.Extra["OSBundleLibraries"] = libs
	}
	return d
}
