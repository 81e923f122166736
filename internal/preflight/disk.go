package preflight

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the floor for free space before indexing (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks that the filesystem holding dataDir has room to
// rebuild the index: at least MinDiskSpaceBytes, or the size of the index
// already in dataDir when that is larger. A dataDir that does not exist
// yet is measured on its nearest existing parent.
func (c *Checker) CheckDiskSpace(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	volume, err := nearestExistingDir(dataDir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(volume, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}
	available := stat.Bavail * uint64(stat.Bsize)

	indexSize := dirSize(dataDir)
	need := requiredSpace(indexSize)
	result.Message = fmt.Sprintf("%s free (need %s)", formatBytes(available), formatBytes(need))
	result.Details = fmt.Sprintf("%s holds %s of index data", dataDir, formatBytes(indexSize))
	if available < need {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

func requiredSpace(indexSize uint64) uint64 {
	return max(MinDiskSpaceBytes, indexSize)
}

// nearestExistingDir walks up from path to the first directory that exists.
func nearestExistingDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(abs)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", abs)
			}
			return abs, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing parent for %s", path)
		}
		abs = parent
	}
}

// dirSize sums regular file sizes under dir. A missing dir is 0.
func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
