package optixconfigs

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/logs"
)

//go:embed schema.cue
var schema string

var filenames = []string{
	"optix.cue",
	".optix.cue",
}

func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {

	var dirs []string
	if workingDir, err := os.Getwd(); err == nil {
		dirs = append(dirs, workingDir)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, configDir)
	}
	dirs = append(dirs, "/etc")

	paths := findFiles(dirs)
	if len(paths) > 0 {
		logger.Info("config file",
			"paths", paths,
		)
	}

	return configs.NewLoader(paths, schema)
}

func findFiles(dirs []string) (paths []string) {
	for _, dir := range dirs {
		for _, filename := range filenames {
			path := filepath.Join(dir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}
	return
}
