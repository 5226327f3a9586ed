// Package registry loads the monitored areas and servers from a JSON or YAML
// document. The registry is read once at startup and never mutated.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/servicecheck/internal/domain"
)

type Document struct {
	ServerAreas []AreaDoc `json:"ServerAreas" yaml:"server_areas"`
}

type AreaDoc struct {
	Name    string      `json:"Name" yaml:"name"`
	Servers []ServerDoc `json:"Servers" yaml:"servers"`
}

type ServerDoc struct {
	Name      string `json:"Name" yaml:"name"`
	IPAddress string `json:"IpAddress" yaml:"ip_address"`
	Port      int    `json:"Port" yaml:"port"`
}

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the document format from a file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Registry is the validated, read-only set of targets grouped by area.
type Registry struct {
	areas  []domain.Area
	byName map[string]domain.Target
}

func Load(path string) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(content, FormatFor(path))
}

func Parse(content []byte, format Format) (*Registry, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(content, &doc)
	default:
		err = json.Unmarshal(content, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return New(doc)
}

// New validates doc and builds the registry.
func New(doc Document) (*Registry, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}

	r := &Registry{byName: make(map[string]domain.Target)}
	for _, a := range doc.ServerAreas {
		area := domain.Area{Name: a.Name}
		for _, s := range a.Servers {
			t := domain.Target{
				Name:    s.Name,
				Address: strings.TrimSpace(s.IPAddress),
				Port:    s.Port,
				Area:    a.Name,
			}
			area.Targets = append(area.Targets, t)
			r.byName[t.Name] = t
		}
		r.areas = append(r.areas, area)
	}
	return r, nil
}

func (d Document) Validate() error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.ServerAreas,
			validation.Required.Error("at least one area is required"),
			validation.Each(validation.By(validateArea)),
		),
	)

	seen := make(map[string]string)
	for _, a := range d.ServerAreas {
		for _, s := range a.Servers {
			if s.Name == "" {
				continue
			}
			if prev, dup := seen[s.Name]; dup {
				err = multierr.Append(err, fmt.Errorf("server %q is defined in both %q and %q", s.Name, prev, a.Name))
				continue
			}
			seen[s.Name] = a.Name
		}
	}
	return err
}

func validateArea(value interface{}) error {
	a, ok := value.(AreaDoc)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an area")
	}
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Servers,
			validation.Required.Error("at least one server is required"),
			validation.Each(validation.By(validateServer)),
		),
	)
}

func validateServer(value interface{}) error {
	s, ok := value.(ServerDoc)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a server")
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.IPAddress, validation.Required, validation.By(notBlank)),
		validation.Field(&s.Port,
			validation.Required,
			validation.Min(1),
			validation.Max(65535),
		),
	)
}

func notBlank(value interface{}) error {
	if v, _ := value.(string); strings.TrimSpace(v) == "" {
		return validation.NewError("validation_blank", "must not be blank")
	}
	return nil
}

// Areas returns the areas in document order.
func (r *Registry) Areas() []domain.Area {
	out := make([]domain.Area, len(r.areas))
	for i, a := range r.areas {
		out[i] = domain.Area{Name: a.Name, Targets: append([]domain.Target(nil), a.Targets...)}
	}
	return out
}

// Targets flattens every area into one slice, in document order.
func (r *Registry) Targets() []domain.Target {
	var out []domain.Target
	for _, a := range r.areas {
		out = append(out, a.Targets...)
	}
	return out
}

func (r *Registry) Lookup(name string) (domain.Target, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Len() int { return len(r.byName) }
