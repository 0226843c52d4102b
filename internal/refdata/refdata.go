// Package refdata loads the levy lookup tables from YAML.
package refdata

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

//go:embed default.yaml
var defaultDataset []byte

// Default returns the embedded Upper Austrian dataset.
func Default() (*domain.ReferenceData, error) {
	return Parse(defaultDataset)
}

// Load reads a dataset from a YAML file. An empty path selects the
// embedded default.
func Load(path string) (*domain.ReferenceData, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML dataset. Unknown keys are rejected so that a typo in
// a table name does not silently drop the table. The result is raw; callers
// validate it with levy.NewReference.
func Parse(data []byte) (*domain.ReferenceData, error) {
	var ref domain.ReferenceData
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ref); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err)
	}
	return &ref, nil
}

// Marshal encodes a dataset in the same layout Load reads.
func Marshal(ref *domain.ReferenceData) ([]byte, error) {
	out, err := yaml.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reference data: %w", err)
	}
	return out, nil
}
