package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPriority = 3

// Priority is an ntfy priority in [1,5]. Group files may spell it as an
// integer or a quoted string; both decode to the same value.
type Priority int

func (p *Priority) UnmarshalYAML(value *yaml.Node) error {
	var n int
	if err := value.Decode(&n); err == nil {
		*p = Priority(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parse priority %q: %w", s, err)
	}
	*p = Priority(n)
	return nil
}

// Source is one feed URL plus its notification metadata.
type Source struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Priority Priority `yaml:"priority"`
	Icon     string   `yaml:"icon"`
	Tags     []string `yaml:"tags"`
}

// Group is a named notification topic with an ordered list of feed sources.
type Group struct {
	Topic   string
	Sources []Source
}

// LoadGroups reads every *.yaml/*.yml file in dir as one feed group.
// The topic is the file name without extension; files are processed in
// sorted name order so cycles visit groups deterministically.
func LoadGroups(dir string) ([]Group, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read feeds dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	groups := make([]Group, 0, len(names))
	for _, name := range names {
		g, err := loadGroupFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoGroups, dir)
	}

	return groups, nil
}

func loadGroupFile(path string) (Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Group{}, fmt.Errorf("read group file: %w", err)
	}

	var sources []Source
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return Group{}, fmt.Errorf("parse group file %s: %w", path, err)
	}

	topic := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	g := Group{Topic: topic, Sources: sources}

	for i := range g.Sources {
		src := &g.Sources[i]
		if strings.TrimSpace(src.URL) == "" {
			return Group{}, fmt.Errorf("group %s: source %d has no url", topic, i)
		}
		if src.Name == "" {
			src.Name = src.URL
		}
		if src.Priority == 0 {
			src.Priority = DefaultPriority
		}
		if src.Priority < 1 || src.Priority > 5 {
			return Group{}, fmt.Errorf("group %s: source %s: priority %d out of range [1,5]",
				topic, src.Name, src.Priority)
		}
	}

	if len(g.Sources) == 0 {
		return Group{}, fmt.Errorf("group %s: no sources defined", topic)
	}

	return g, nil
}

// ErrNoGroups reports an empty feeds directory.
var ErrNoGroups = errors.New("no feed groups configured")
