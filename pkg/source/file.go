package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"aiemployee/rulekit/pkg/rules"
)

// Extensions lists the file extensions a FileSource reads.
var Extensions = []string{".yaml", ".yml", ".json"}

// Document is the on-disk shape of a rule file.
type Document struct {
	Rules []*rules.Rule `json:"rules" yaml:"rules"`
}

// LoadError reports a rule file that could not be read or parsed.
type LoadError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load rule file %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// FileSource loads rules from YAML or JSON files on disk.
type FileSource struct {
	path   string
	strict bool
	logger *slog.Logger
}

// NewFileSource creates a new file-based rule source. The path can be a
// single file or a directory; directories are walked recursively and every
// file with a known extension is loaded. Hidden files are skipped.
//
// When strict is false, unreadable files in a directory are logged and
// skipped; otherwise the first failure aborts the load.
func NewFileSource(path string, strict bool, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		strict: strict,
		logger: logger.With("component", "source.file"),
	}
}

// Path returns the configured file or directory.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads every rule from the configured path. Rules with duplicate IDs
// keep their first definition.
func (s *FileSource) Load(ctx context.Context) ([]*rules.Rule, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	var loaded []*rules.Rule
	if info.IsDir() {
		loaded, err = s.loadDirectory(ctx)
	} else {
		loaded, err = LoadFile(s.path)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(loaded))
	out := loaded[:0]
	for _, r := range loaded {
		if prev, dup := seen[r.ID]; dup {
			s.logger.Warn("duplicate rule id, keeping first definition",
				"rule_id", r.ID,
				"first", prev,
			)
			continue
		}
		seen[r.ID] = r.Name
		out = append(out, r)
	}

	s.logger.Info("loaded rules from source",
		"path", s.path,
		"rule_count", len(out),
	)
	return out, nil
}

func (s *FileSource) loadDirectory(ctx context.Context) ([]*rules.Rule, error) {
	var loaded []*rules.Rule

	err := filepath.WalkDir(s.path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path != s.path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !HasRuleExtension(path) {
			return nil
		}

		fileRules, err := LoadFile(path)
		if err != nil {
			if s.strict {
				return err
			}
			s.logger.Warn("failed to load rule file, skipping",
				"path", path,
				"error", err,
			)
			return nil
		}

		loaded = append(loaded, fileRules...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
	}

	return loaded, nil
}

// LoadFile parses one rule file. The document may be a mapping with a
// "rules" key or a bare list of rules. Rules without an ID get one derived
// from the file path and rule name, so it is stable across reloads.
func LoadFile(path string) ([]*rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	list, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	for i, r := range list {
		if r == nil {
			return nil, &LoadError{Path: path, Cause: fmt.Errorf("rule %d is empty", i)}
		}
		if r.ID == "" {
			r.ID = DeriveID(path, r.Name, i)
		}
	}
	return list, nil
}

// Parse decodes a rule document. JSON input is decoded with encoding/json,
// everything else as YAML.
func Parse(data []byte, isJSON bool) ([]*rules.Rule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if isJSON {
		if trimmed[0] == '[' {
			var list []*rules.Rule
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, err
			}
			return list, nil
		}
		var doc Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return doc.Rules, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	if node.Content[0].Kind == yaml.SequenceNode {
		var list []*rules.Rule
		if err := node.Content[0].Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc Document
	if err := node.Content[0].Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

// HasRuleExtension reports whether path has one of Extensions.
func HasRuleExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}

// DeriveID returns a name-based UUID for a rule that has no ID.
func DeriveID(path, name string, index int) string {
	key := fmt.Sprintf("%s#%s", filepath.ToSlash(filepath.Clean(path)), name)
	if name == "" {
		key = fmt.Sprintf("%s#%d", filepath.ToSlash(filepath.Clean(path)), index)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("rulekit:"+key)).String()
}
