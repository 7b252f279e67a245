package strategy

import (
	"fmt"
	"path"
)

// Render returns the ordered human steps for applying s
func Render(s Strategy) []string {
	target := ""
	if len(s.InjectionPoints) > 0 {
		target = "/" + s.InjectionPoints[0]
	}
	name := path.Base(target)

	var steps []string
	switch s.Method {
	case DirectLoad:
		steps = []string{
			"Ensure System Integrity Protection is disabled",
			fmt.Sprintf("Copy %s to %s/", name, path.Dir(target)),
			"Set proper permissions (root:wheel, 755)",
			fmt.Sprintf("Load the kext with: sudo kextload %s", target),
			fmt.Sprintf("Verify loading with: kextstat | grep %s", trimExt(name)),
		}
	case SignedLoad:
		steps = []string{
			"Sign the kext with a valid Developer ID certificate",
			fmt.Sprintf("Copy the signed %s to %s/", name, path.Dir(target)),
			"Set proper permissions (root:wheel, 755)",
			fmt.Sprintf("Load the kext with: sudo kextload %s", target),
			fmt.Sprintf("Verify loading with: kextstat | grep %s", trimExt(name)),
		}
	case RuntimeInjectionPlugin:
		steps = []string{
			"Disable System Integrity Protection temporarily",
			fmt.Sprintf("Install the SkyLight plugin %s to %s/", name, path.Dir(target)),
			"Re-enable System Integrity Protection",
			"The plugin loads the kext at runtime",
			"Monitor injection in the SkyLight logs",
		}
	}

	for i := range steps {
		steps[i] = fmt.Sprintf("%d. %s", i+1, steps[i])
	}
	return steps
}

func trimExt(name string) string {
	return name[:len(name)-len(path.Ext(name))]
}
