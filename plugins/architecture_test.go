package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"solidcore/testutil"
)

// TestPluginsDoNotImportDrivers keeps plugin packages on the service core and
// the model. Storage and blob drivers are chosen by configuration, never by a
// plugin. Test files may use in-memory drivers.
func TestPluginsDoNotImportDrivers(t *testing.T) {
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("read plugins dir: %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(".", e.Name())
		testutil.AssertNoDirectImports(t, dir, testutil.InfraImportForbidden, "plugin "+e.Name()+" must not pick storage drivers")
		testutil.AssertNoDirectImports(t, dir, func(p string) bool {
			return p == "solidcore/internal/platform/config" || p == "solidcore/internal/archive"
		}, "plugin "+e.Name()+" must not read configuration or archives directly")
	}
}
