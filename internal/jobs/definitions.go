package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// definitionFile is the on-disk layout of a job definition file. One job
// per file; the filename is informational only.
type definitionFile struct {
	Job models.JobDefinition `toml:"job" yaml:"job"`
}

// LoadDefinitions reads all .toml, .yaml and .yml files in a directory and
// returns the validated job definitions sorted by ID. A missing directory
// is not an error; a malformed file is.
func LoadDefinitions(dir string, logger arbor.ILogger) ([]*models.JobDefinition, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("dir", dir).Msg("No job definitions directory")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read definitions directory: %w", err)
	}

	var defs []*models.JobDefinition
	seen := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".toml" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		def, err := loadDefinitionFile(path, ext)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("duplicate job id %q in %s (first defined in %s)", def.ID, entry.Name(), prev)
		}
		seen[def.ID] = entry.Name()
		defs = append(defs, def)

		logger.Debug().
			Str("job_id", def.ID).
			Str("file", entry.Name()).
			Msg("Loaded job definition")
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

func loadDefinitionFile(path, ext string) (*models.JobDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file definitionFile
	switch ext {
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	def := file.Job
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job definition in %s: %w", path, err)
	}
	return &def, nil
}
