package gemfront_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestModuleDependencies_Present(t *testing.T) {
	for _, module := range []string{
		"github.com/golang-jwt/jwt/v5",
		"github.com/redis/go-redis/v9",
		"github.com/minio/minio-go/v7",
		"github.com/phpdave11/gofpdf",
		"github.com/Masterminds/sprig/v3",
		"github.com/spf13/cobra",
		"golang.org/x/sync",
	} {
		t.Run(module, func(t *testing.T) {
			testModulePresence(t, module)
		})
	}
}

// Debouncing and polling are timer-driven; a sleep in production code
// would stall a request goroutine.
func TestNoSleepInProductionCode(t *testing.T) {
	t.Run("happy_repo_has_no_sleep", func(t *testing.T) {
		matches, err := findSleepUsages(".")
		if err != nil {
			t.Fatalf("scan repository: %v", err)
		}
		if len(matches) != 0 {
			t.Fatalf("expected no time.Sleep in production code, found in: %v", matches)
		}
	})

	t.Run("error_fixture_with_sleep_is_detected", func(t *testing.T) {
		fixture := `package catalog
func wait() { time.Sleep(250 * time.Millisecond) }`
		if !hasSleep(fixture) {
			t.Fatal("expected sleep to be detected in fixture")
		}
	})
}

func testModulePresence(t *testing.T, module string) {
	t.Helper()

	t.Run("happy_present_in_real_go_mod", func(t *testing.T) {
		goMod, err := os.ReadFile("go.mod")
		if err != nil {
			t.Fatalf("read go.mod: %v", err)
		}
		if !moduleRequired(string(goMod), module) {
			t.Fatalf("expected module %q to be present in go.mod", module)
		}
	})

	t.Run("error_missing_module_in_fixture", func(t *testing.T) {
		fixture := `module example.com/demo

go 1.25.0

require (
	github.com/gin-gonic/gin v1.11.0
)`
		if moduleRequired(fixture, module) {
			t.Fatalf("expected fixture to not contain module %q", module)
		}
	})
}

func moduleRequired(goModContent, module string) bool {
	re := regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(module) + `\s+v\S+`)
	return re.MatchString(goModContent)
}

func findSleepUsages(root string) ([]string, error) {
	matches := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		if hasSleep(string(b)) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func hasSleep(content string) bool {
	re := regexp.MustCompile(`\btime\.Sleep\s*\(`)
	return re.MatchString(content)
}
