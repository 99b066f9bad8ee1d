package finder

import (
	"fmt"
	"os"
	"path/filepath"
)

// SearchPaths are tried in order when the requested config file is missing
var SearchPaths = []string{
	"conf/config.yaml",
	"/etc/dbadmin/config.yaml",
}

// FindConfigFile returns the absolute path of configPath, falling back to
// SearchPaths. When mustExist is false a missing file is returned as given.
func FindConfigFile(configPath string, mustExist bool) (string, error) {
	candidates := append([]string{configPath}, SearchPaths...)
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		return absPath, nil
	}

	if mustExist {
		return "", fmt.Errorf("configuration file not found: %s", configPath)
	}
	return configPath, nil
}
