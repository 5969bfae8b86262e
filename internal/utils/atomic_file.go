package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	atomicTemporaryPatternTemplateConstant = ".%s.*.tmp"
	atomicDirectoryPermissionsConstant     = 0o755
	atomicFilePermissionsConstant          = 0o644
	atomicWriteErrorTemplateConstant       = "atomic write of %s failed: %w"
	windowsOperatingSystemConstant         = "windows"
)

// WriteFileAtomic replaces the file at targetPath with data. The data is written to a temporary file in the same
// directory, synced, and renamed over the target so readers observe either the old or the new content.
func WriteFileAtomic(targetPath string, data []byte) error {
	targetDirectory := filepath.Dir(targetPath)
	if directoryError := os.MkdirAll(targetDirectory, atomicDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(atomicWriteErrorTemplateConstant, targetPath, directoryError)
	}

	temporaryFile, createError := os.CreateTemp(targetDirectory, fmt.Sprintf(atomicTemporaryPatternTemplateConstant, filepath.Base(targetPath)))
	if createError != nil {
		return fmt.Errorf(atomicWriteErrorTemplateConstant, targetPath, createError)
	}
	temporaryPath := temporaryFile.Name()

	writeError := writeAndSync(temporaryFile, data)
	if writeError != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf(atomicWriteErrorTemplateConstant, targetPath, writeError)
	}

	if chmodError := os.Chmod(temporaryPath, atomicFilePermissionsConstant); chmodError != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf(atomicWriteErrorTemplateConstant, targetPath, chmodError)
	}

	if renameError := os.Rename(temporaryPath, targetPath); renameError != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf(atomicWriteErrorTemplateConstant, targetPath, renameError)
	}

	syncDirectory(targetDirectory)
	return nil
}

func writeAndSync(temporaryFile *os.File, data []byte) error {
	if _, writeError := temporaryFile.Write(data); writeError != nil {
		_ = temporaryFile.Close()
		return writeError
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return syncError
	}
	return temporaryFile.Close()
}

func syncDirectory(directoryPath string) {
	if runtime.GOOS == windowsOperatingSystemConstant {
		return
	}
	directory, openError := os.Open(directoryPath)
	if openError != nil {
		return
	}
	defer directory.Close()
	_ = directory.Sync()
}
