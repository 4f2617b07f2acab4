package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// minScratchFreeBytes is the floor below which transcription attempts are
// likely to fail their staging copy anyway.
const minScratchFreeBytes = 256 << 20

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWhisperBinary verifies the transcription binary resolves on PATH.
func CheckWhisperBinary(binary string) Result {
	const name = "Whisper binary"
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found on PATH", binary)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckModelFile verifies the configured model file exists.
func CheckModelFile(modelPath string) Result {
	const name = "Whisper model"
	modelPath = strings.TrimSpace(modelPath)
	if modelPath == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(modelPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", modelPath)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", modelPath, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", modelPath)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MB)", modelPath, info.Size()>>20)}
}

// CheckScratchSpace verifies the scratch filesystem has working room for
// staged audio copies.
func CheckScratchSpace(path string) Result {
	const name = "Scratch space"
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minScratchFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (only %d MB free)", path, free>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MB free)", path, free>>20)}
}
