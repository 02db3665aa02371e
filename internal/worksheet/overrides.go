package worksheet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// aliasFile is the on-disk format for site-specific sheet names:
//
//	aliases:
//	  A2: ["Proc Name", "공정 이름"]
//	  F1: ["OCAP"]
type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliases reads a YAML alias file and registers its names.
func (v *Vocabulary) LoadAliases(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vocabulary file: %w", err)
	}
	defer f.Close()

	if err := v.ApplyAliases(f); err != nil {
		return fmt.Errorf("vocabulary file %s: %w", path, err)
	}
	return nil
}

// ApplyAliases decodes alias YAML from r and registers its names.
func (v *Vocabulary) ApplyAliases(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file aliasFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode aliases: %w", err)
	}

	for code, names := range file.Aliases {
		if err := v.AddAliases(ItemCode(code), names...); err != nil {
			return err
		}
	}
	return nil
}
