package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const templateHeader = `# lwctl engine connection.
# endpoint = "loopback" with port = 0 reads the engine port from port_file.
# endpoint = "named" connects to <runtime_dir>/<channel_name>.sock.
`

// Template renders the default settings as a config file.
func Template() (string, error) {
	b, err := toml.Marshal(FileOf(Default()))
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return templateHeader + string(b), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
