// Package provision locates the llama-server executable the daemon
// supervises. Downloading or building server releases is an external
// concern; this package only resolves what a provisioner already put in
// place.
package provision

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"llamad/internal/common/fsutil"
)

// ServerBinName is the executable name of the supervised server.
const ServerBinName = "llama-server"

func binFileName() string {
	if runtime.GOOS == "windows" {
		return ServerBinName + ".exe"
	}
	return ServerBinName
}

// ResolveServerBin returns the absolute path of the server executable.
// With a non-empty dir it accepts the binary in the dir itself or in the
// dir's build/bin subdirectory (the layout of a source-tree build). With an
// empty dir it falls back to $PATH.
func ResolveServerBin(dir string) (string, error) {
	if dir == "" {
		path, err := exec.LookPath(ServerBinName)
		if err != nil {
			return "", fmt.Errorf("%s not found in PATH: %w", ServerBinName, err)
		}
		return filepath.Abs(path)
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	candidates := []string{
		filepath.Join(abs, binFileName()),
		filepath.Join(abs, "build", "bin", binFileName()),
	}
	for _, c := range candidates {
		if fsutil.IsExecutableFile(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s not found in %s or %s", ServerBinName, candidates[0], candidates[1])
}

// LibraryPathEnv returns the LD_LIBRARY_PATH entry the child process needs
// when the binary ships with adjacent shared objects. Returns "" on Windows
// where the loader searches the binary's own directory.
func LibraryPathEnv(binPath string) string {
	if runtime.GOOS == "windows" {
		return ""
	}
	dir := filepath.Dir(binPath)
	if cur := os.Getenv("LD_LIBRARY_PATH"); cur != "" {
		return "LD_LIBRARY_PATH=" + cur + string(os.PathListSeparator) + dir
	}
	return "LD_LIBRARY_PATH=" + dir
}
