// Package clientsettings edits the League client's LeagueClientSettings.yaml.
package clientsettings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/riftpilot/errs"
)

const localeKey = "locale"

// Path returns the settings file that belongs to the client executable at installPath.
func Path(installPath string) string {
	return filepath.Join(filepath.Dir(installPath), "Config", "LeagueClientSettings.yaml")
}

// Locale reads the first locale value in the settings file.
func Locale(path string) (string, error) {
	doc, err := load(path)
	if err != nil {
		return "", err
	}
	node := findKey(doc, localeKey)
	if node == nil {
		return "", errs.New("clientsettings", errs.CodeNotFound, errs.WithMessage("locale key not found"))
	}
	return node.Value, nil
}

// SetLocale rewrites the first locale value in the settings file. Other keys and comments are
// preserved.
func SetLocale(path, locale string) error {
	locale = strings.TrimSpace(locale)
	if locale == "" || strings.ContainsAny(locale, " \t\r\n\"") {
		return errs.New("clientsettings", errs.CodeInvalid, errs.WithMessage("invalid locale "+fmt.Sprintf("%q", locale)))
	}
	doc, err := load(path)
	if err != nil {
		return err
	}
	node := findKey(doc, localeKey)
	if node == nil {
		return errs.New("clientsettings", errs.CodeNotFound, errs.WithMessage("locale key not found"))
	}
	node.Value = locale
	node.Tag = "!!str"
	node.Style = yaml.DoubleQuotedStyle

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode client settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode client settings: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat client settings: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write client settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace client settings: %w", err)
	}
	return nil
}

func load(path string) (*yaml.Node, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path derives from the configured install path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.New("clientsettings", errs.CodeNotFound,
				errs.WithMessage("config not found at "+path), errs.WithCause(err))
		}
		return nil, fmt.Errorf("read client settings: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errs.New("clientsettings", errs.CodeDecode, errs.WithMessage("parse client settings"), errs.WithCause(err))
	}
	return &doc, nil
}

// findKey returns the scalar value node of the first mapping entry named key, depth first.
func findKey(node *yaml.Node, key string) *yaml.Node {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if k.Value == key && v.Kind == yaml.ScalarNode {
				return v
			}
			if found := findKey(v, key); found != nil {
				return found
			}
		}
		return nil
	}
	for _, child := range node.Content {
		if found := findKey(child, key); found != nil {
			return found
		}
	}
	return nil
}
