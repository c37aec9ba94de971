package site

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoFrontMatter is returned for markdown files that do not open with a
// "---" delimited YAML block.
var ErrNoFrontMatter = errors.New("missing front matter")

// splitFrontMatter separates the YAML block of a markdown file from its body.
func splitFrontMatter(content []byte) (front []byte, body string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() || strings.TrimRight(scanner.Text(), "\r") != "---" {
		return nil, "", ErrNoFrontMatter
	}

	var frontLines []string
	closed := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "---" {
			closed = true
			break
		}
		frontLines = append(frontLines, line)
	}
	if !closed {
		return nil, "", fmt.Errorf("%w: unterminated block", ErrNoFrontMatter)
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to read markdown file: %w", err)
	}

	return []byte(strings.Join(frontLines, "\n")), strings.TrimSpace(strings.Join(bodyLines, "\n")), nil
}

// parseFrontMatter decodes the YAML block of content into out and returns
// the raw key set and the markdown body.
func parseFrontMatter(content []byte, out any) (map[string]any, string, error) {
	front, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, "", err
	}

	keys := map[string]any{}
	if err := yaml.Unmarshal(front, &keys); err != nil {
		return nil, "", fmt.Errorf("failed to parse front matter: %w", err)
	}
	if err := yaml.Unmarshal(front, out); err != nil {
		return nil, "", fmt.Errorf("failed to parse front matter: %w", err)
	}
	return keys, body, nil
}

// encodeFrontMatter serializes meta as a front matter block followed by body.
func encodeFrontMatter(meta any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(meta); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}

	buf.WriteString("---\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}
