package sources

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for any malformed sources file
var ErrInvalidConfig = errors.New("invalid sources config")

var requiredFields = []string{
	"id",
	"name",
	"country",
	"category",
	"rss_urls",
	"enabled",
	"fetch_interval_minutes",
	"trust_rank",
}

// Load reads and validates the sources YAML file at path
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}

	sources, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("Sources loaded", "path", path, "count", len(sources))
	return sources, nil
}

// Parse validates raw YAML. Presence of every required key is checked on the YAML node
// level, so that an explicit `enabled: false` is told apart from a missing field.
func Parse(data []byte) ([]Source, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	list := sourcesNode(&doc)
	if list == nil {
		return nil, fmt.Errorf("%w: missing top-level 'sources' key", ErrInvalidConfig)
	}
	if list.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: expected 'sources' to be a list", ErrInvalidConfig)
	}

	result := make([]Source, 0, len(list.Content))
	for _, node := range list.Content {
		source, err := parseSource(node)
		if err != nil {
			return nil, err
		}
		result = append(result, source)
	}
	return result, nil
}

// sourcesNode returns the value of the top-level sources key, or nil
func sourcesNode(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "sources" {
			return root.Content[i+1]
		}
	}
	return nil
}

func parseSource(node *yaml.Node) (Source, error) {
	if node.Kind != yaml.MappingNode {
		return Source{}, fmt.Errorf("%w: each source entry must be an object", ErrInvalidConfig)
	}

	present := make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		present[node.Content[i].Value] = node.Content[i+1].Value
	}

	var missing []string
	for _, field := range requiredFields {
		if _, ok := present[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		id, ok := present["id"]
		if !ok {
			id = "<unknown>"
		}
		sort.Strings(missing)
		return Source{}, fmt.Errorf("%w: Source '%s' missing fields: %v", ErrInvalidConfig, id, missing)
	}

	var source Source
	if err := node.Decode(&source); err != nil {
		return Source{}, fmt.Errorf("%w: Source '%s': %v", ErrInvalidConfig, present["id"], err)
	}
	if len(source.RSSURLs) == 0 {
		return Source{}, fmt.Errorf("%w: Source '%s' must define at least one rss_urls entry", ErrInvalidConfig, source.ID)
	}
	return source, nil
}
