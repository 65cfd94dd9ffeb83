package definition

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"beacon/internal/logging"
)

// ErrNotFound is returned when a workflow file does not exist or cannot be
// parsed as a workflow.
var ErrNotFound = errors.New("workflow not found")

// DefaultDir is the workflows directory relative to the project root.
const DefaultDir = ".beacon/workflows"

// Extension is the file extension of workflow files.
const Extension = ".yml"

// ResolveDir returns the workflows directory.
//
// Resolution order:
//  1. BEACON_WORKFLOWS_DIR environment variable
//  2. Explicit dir parameter (if non-empty)
//  3. DefaultDir under basePath
//
// Pass an empty basePath for the current working directory.
func ResolveDir(basePath, dir string) string {
	if envDir := os.Getenv("BEACON_WORKFLOWS_DIR"); envDir != "" {
		return envDir
	}
	if dir != "" {
		return dir
	}
	return filepath.Join(basePath, DefaultDir)
}

// Repository reads workflow definitions from a directory of YAML files.
type Repository struct {
	dir string
	log *logrus.Entry
}

// NewRepository creates a [Repository] rooted at dir. A nil logger discards
// output.
func NewRepository(dir string, logger *logrus.Entry) *Repository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Repository{
		dir: dir,
		log: logger.WithField("component", "definition"),
	}
}

// Dir returns the directory the repository reads from.
func (r *Repository) Dir() string {
	return r.dir
}

// Load reads and parses <dir>/<name>.yml.
//
// A missing file and a file that is not a workflow both return an error
// wrapping [ErrNotFound]. Parse failures are logged at warn level.
func (r *Repository) Load(name string) (*Definition, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	path := filepath.Join(r.dir, name+Extension)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.WithError(err).WithField("path", path).Warn("failed to read workflow")
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	def, err := Parse(data)
	if err != nil {
		r.log.WithError(err).WithField("path", path).Warn("invalid workflow file")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return def, nil
}

// List returns the names of all workflows in the directory, sorted, with the
// extension stripped. A missing directory yields an empty list.
func (r *Repository) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Extension))
	}
	sort.Strings(names)

	return names, nil
}
