// Package schema loads and validates KPI schemas from YAML or JSON.
package schema

import (
	_ "embed"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/units"
)

//go:embed default.yaml
var defaultSchema []byte

var codeRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// entry is one KPI as written in a schema file. The code is the mapping key.
type entry struct {
	Label       string   `yaml:"label,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Units       []string `yaml:"units,flow"`
	Synonyms    []string `yaml:"synonyms,omitempty"`
}

// Default returns the built-in schema.
func Default() *model.Schema {
	s, err := Parse(defaultSchema)
	if err != nil {
		panic(eris.Wrap(err, "schema: built-in schema is invalid"))
	}
	return s
}

// Load reads a schema file. An empty path returns the built-in schema.
func Load(path string) (*model.Schema, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: load %s", path)
	}
	return s, nil
}

// Parse decodes a schema document, preserving the order KPIs are written in.
// The document is either {kpis: {code: {...}}} or the bare code mapping.
// JSON is accepted since it is valid YAML.
func Parse(data []byte) (*model.Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "schema: parse")
	}
	if len(doc.Content) == 0 {
		return nil, eris.New("schema: empty document")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, eris.New("schema: root must be a mapping")
	}
	if len(root.Content) == 2 && root.Content[0].Value == "kpis" {
		root = root.Content[1]
		if root.Kind != yaml.MappingNode {
			return nil, eris.New("schema: kpis must be a mapping of code to definition")
		}
	}

	kpis := make([]model.KPIDef, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		code := strings.TrimSpace(root.Content[i].Value)
		var e entry
		if err := root.Content[i+1].Decode(&e); err != nil {
			return nil, eris.Wrapf(err, "schema: decode %q", code)
		}
		kpis = append(kpis, model.KPIDef{
			Code:        code,
			Label:       e.Label,
			Description: e.Description,
			Units:       trimAll(e.Units),
			Synonyms:    trimAll(e.Synonyms),
		})
	}

	if err := Validate(kpis); err != nil {
		return nil, err
	}
	return model.NewSchema(kpis), nil
}

// Validate checks a list of KPI definitions.
func Validate(kpis []model.KPIDef) error {
	if len(kpis) == 0 {
		return eris.New("schema: no KPIs defined")
	}
	seen := make(map[string]bool, len(kpis))
	for _, k := range kpis {
		if !codeRe.MatchString(k.Code) {
			return eris.Errorf("schema: invalid KPI code %q", k.Code)
		}
		if seen[k.Code] {
			return eris.Errorf("schema: duplicate KPI code %q", k.Code)
		}
		seen[k.Code] = true

		unitSeen := make(map[string]bool, len(k.Units))
		for _, u := range k.Units {
			n := units.Normalize(u)
			if n == "" {
				return eris.Errorf("schema: %s: empty unit", k.Code)
			}
			if unitSeen[n] {
				return eris.Errorf("schema: %s: duplicate unit %q", k.Code, u)
			}
			unitSeen[n] = true
		}
		for _, s := range k.Synonyms {
			if s == "" {
				return eris.Errorf("schema: %s: empty synonym", k.Code)
			}
		}
	}
	return nil
}

// Marshal renders a schema in the {kpis: ...} layout Parse reads.
func Marshal(s *model.Schema) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range s.KPIs {
		var val yaml.Node
		if err := val.Encode(entry{Label: k.Label, Description: k.Description, Units: k.Units, Synonyms: k.Synonyms}); err != nil {
			return nil, eris.Wrapf(err, "schema: encode %q", k.Code)
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k.Code}, &val)
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "kpis"}, root,
	}}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "schema: marshal")
	}
	return out, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
