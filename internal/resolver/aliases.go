package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
)

// ErrAliasFormat is returned for alias files with an unknown extension.
var ErrAliasFormat = errors.New("unsupported alias file format")

// LoadAliases reads an alias -> property id mapping from a JSON, YAML, or
// TOML file. A missing file or empty path yields an empty map. Keys are
// normalized; entries with an empty key or id are skipped.
func LoadAliases(path string) (map[string]string, error) {
	aliases := map[string]string{}
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return aliases, nil
		}
		return nil, fmt.Errorf("reading alias file: %w", err)
	}

	raw := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		raw, err = yaml.Parser().Unmarshal(data)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrAliasFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing alias file %s: %w", path, err)
	}

	for k, v := range raw {
		key := Normalize(k)
		id := strings.TrimSpace(fmt.Sprint(v))
		if s, ok := v.(string); ok {
			id = strings.TrimSpace(s)
		}
		if key == "" || id == "" || v == nil {
			continue
		}
		aliases[key] = id
	}
	return aliases, nil
}
