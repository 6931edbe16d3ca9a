package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fabricnms/internal/domain"
)

const (
	FileBaseSystem = "base_system.yml"
	FileGroups     = "groups.yml"
	FileRouting    = "routing.yml"
	FileVXLANs     = "vxlans.yml"
	FileInterfaces = "interfaces.yml"

	DirGlobal  = "global"
	DirFabric  = "fabric"
	DirDevices = "devices"
)

// hostFiles are the files every per-device directory holds
var hostFiles = []string{FileBaseSystem, FileInterfaces, FileRouting}

// catalogue lists every file allowed outside devices/
var catalogue = map[string][]string{
	DirGlobal:                         {FileBaseSystem, FileGroups, FileRouting, FileVXLANs},
	DirFabric:                         {FileBaseSystem},
	domain.DeviceTypeCore.DirName():   {FileBaseSystem},
	domain.DeviceTypeDist.DirName():   {FileBaseSystem},
	domain.DeviceTypeAccess.DirName(): {FileBaseSystem},
}

// catalogueDirs fixes the order directories are verified in
var catalogueDirs = []string{
	DirGlobal, DirFabric,
	domain.DeviceTypeCore.DirName(), domain.DeviceTypeDist.DirName(), domain.DeviceTypeAccess.DirName(),
}

// SettingsPath maps a catalogue path such as ["global", "routing.yml"] or
// ["devices", hostname, "interfaces.yml"] onto a file under root. Any path
// outside the catalogue fails with ErrPathNotInCatalogue.
func SettingsPath(root string, parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: empty path", ErrPathNotInCatalogue)
	}
	if parts[0] == DirDevices {
		if len(parts) != 3 {
			return "", fmt.Errorf("%w: invalid directory structure for devices settings: %s",
				ErrPathNotInCatalogue, strings.Join(parts, "/"))
		}
		if !domain.ValidHostname(parts[1]) {
			return "", fmt.Errorf("%w: invalid hostname %q", ErrPathNotInCatalogue, parts[1])
		}
		if !contains(hostFiles, parts[2]) {
			return "", fmt.Errorf("%w: file %s not defined for devices", ErrPathNotInCatalogue, parts[2])
		}
		return filepath.Join(root, DirDevices, parts[1], parts[2]), nil
	}
	files, ok := catalogue[parts[0]]
	if !ok || len(parts) != 2 || !contains(files, parts[1]) {
		return "", fmt.Errorf("%w: %s", ErrPathNotInCatalogue, strings.Join(parts, "/"))
	}
	return filepath.Join(root, parts[0], parts[1]), nil
}

// VerifyDirStructure checks that root holds every catalogue file, and that
// each per-device directory named by a valid hostname holds the host files
func VerifyDirStructure(root string) error {
	for _, dir := range catalogueDirs {
		if err := requireDir(filepath.Join(root, dir)); err != nil {
			return err
		}
		for _, f := range catalogue[dir] {
			if err := requireFile(filepath.Join(root, dir, f)); err != nil {
				return err
			}
		}
	}

	devicesDir := filepath.Join(root, DirDevices)
	if err := requireDir(devicesDir); err != nil {
		return err
	}
	entries, err := os.ReadDir(devicesDir)
	if err != nil {
		return &DirStructureError{Path: devicesDir, Reason: err.Error()}
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || !domain.ValidHostname(e.Name()) {
			continue
		}
		for _, f := range hostFiles {
			if err := requireFile(filepath.Join(devicesDir, e.Name(), f)); err != nil {
				return err
			}
		}
	}
	return nil
}

// InitRepository creates every missing catalogue file under root as an
// empty layer, leaving existing files alone
func InitRepository(root string) error {
	for _, dir := range catalogueDirs {
		for _, f := range catalogue[dir] {
			if err := touch(filepath.Join(root, dir, f)); err != nil {
				return err
			}
		}
	}
	return os.MkdirAll(filepath.Join(root, DirDevices), 0o755)
}

// InitDevice creates the per-device directory of hostname with empty
// host files
func InitDevice(root, hostname string) error {
	for _, f := range hostFiles {
		path, err := SettingsPath(root, DirDevices, hostname, f)
		if err != nil {
			return err
		}
		if err := touch(path); err != nil {
			return err
		}
	}
	return nil
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &DirStructureError{Path: path, Reason: "file not found"}
	}
	if !info.Mode().IsRegular() {
		return &DirStructureError{Path: path, Reason: "is not a regular file"}
	}
	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &DirStructureError{Path: path, Reason: "directory not found"}
	}
	if !info.IsDir() {
		return &DirStructureError{Path: path, Reason: "is not a directory"}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
