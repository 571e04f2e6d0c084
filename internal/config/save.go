package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/jsonpartial/internal/log"
)

// SaveValue sets the dotted key (e.g. "watch.debounce") to value in the
// config file at configPath. Comments and unrelated keys are preserved.
// The file is created if missing. value is parsed as a YAML scalar, so
// "true" is stored as a boolean and "300ms" as a string.
func SaveValue(configPath, key, value string) error {
	if key == "" {
		return fmt.Errorf("empty config key")
	}

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config root must be a mapping")
	}

	var scalar yaml.Node
	if err := yaml.Unmarshal([]byte(value), &scalar); err != nil || len(scalar.Content) != 1 || scalar.Content[0].Kind != yaml.ScalarNode {
		scalar = yaml.Node{Content: []*yaml.Node{{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}}}
	}

	if err := setPath(doc.Content[0], strings.Split(key, "."), scalar.Content[0]); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	if err := writeAtomic(configPath, buf.Bytes()); err != nil {
		return err
	}
	log.Info(log.CatConfig, "Saved config value", "path", configPath, "key", key)
	return nil
}

// setPath walks or creates mappings along path and sets the final key.
func setPath(mapping *yaml.Node, path []string, value *yaml.Node) error {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value != path[0] {
			continue
		}
		if len(path) == 1 {
			// Keep any line comment attached to the old value.
			value.LineComment = mapping.Content[i+1].LineComment
			mapping.Content[i+1] = value
			return nil
		}
		child := mapping.Content[i+1]
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("%s is not a mapping", path[0])
		}
		return setPath(child, path[1:], value)
	}

	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path[0]}
	if len(path) == 1 {
		mapping.Content = append(mapping.Content, key, value)
		return nil
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	mapping.Content = append(mapping.Content, key, child)
	return setPath(child, path[1:], value)
}

// writeAtomic writes data to a temp file next to path and renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".jsonpartial.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
