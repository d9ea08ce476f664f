//go:build ORT

package provider

import (
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

// newHugotSession runs the model on ONNX Runtime.
func newHugotSession() (*hugot.Session, error) {
	var opts []options.WithOption
	if dir := onnxRuntimeDir(); dir != "" {
		opts = append(opts, options.WithOnnxLibraryPath(dir))
	}
	return hugot.NewORTSession(opts...)
}

// onnxRuntimeDir returns ORT_LIB_DIR, or the first lib/ directory found next
// to the binary or in the working directory. An empty result leaves the
// lookup to hugot.
func onnxRuntimeDir() string {
	if dir := os.Getenv("ORT_LIB_DIR"); dir != "" {
		return dir
	}
	var roots []string
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	for _, root := range roots {
		dir := filepath.Join(root, "lib")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
