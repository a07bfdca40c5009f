package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dosco/graphjin/populate/v3/core/internal/sdata"
	"github.com/go-playground/validator/v10"
)

// Configuration for the population engine
type Config struct {
	// Schemas lists every collection that can be queried or populated and
	// the relations declared on it
	Schemas []SchemaConfig `mapstructure:"schemas" json:"schemas" yaml:"schemas" jsonschema:"title=Schemas" validate:"dive"`

	// Log compiled pipelines and plan details
	Debug bool `mapstructure:"debug" json:"debug" yaml:"debug" jsonschema:"title=Debug,default=false"`

	// Upper bound on the populate nesting depth of a single request. Zero
	// means unbounded.
	MaxDepth int `mapstructure:"max_depth" json:"max_depth" yaml:"max_depth" jsonschema:"title=Max Populate Depth,default=0" validate:"gte=0"`
}

// SchemaConfig declares one schema
type SchemaConfig struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" jsonschema:"title=Schema Name" validate:"required"`

	// Collection name, defaults to the schema name
	Collection string `mapstructure:"collection" json:"collection,omitempty" yaml:"collection,omitempty" jsonschema:"title=Collection"`

	// Fields hidden when a request gives no select or omit
	Omit []string `mapstructure:"omit" json:"omit,omitempty" yaml:"omit,omitempty" jsonschema:"title=Default Omit"`

	Virtuals []VirtualConfig `mapstructure:"virtuals" json:"virtuals,omitempty" yaml:"virtuals,omitempty" jsonschema:"title=Virtual Fields" validate:"dive"`

	Relations []RelationConfig `mapstructure:"relations" json:"relations,omitempty" yaml:"relations,omitempty" jsonschema:"title=Relations" validate:"dive"`
}

// VirtualConfig declares a computed field. Expr is a CEL expression over the
// decoded document bound as `doc`, for example `doc.first + " " + doc.last`.
// A dependency missing from the stored document is bound as null, so an
// optional input can be tested with `doc.nick == null`.
type VirtualConfig struct {
	Name string   `mapstructure:"name" json:"name" yaml:"name" jsonschema:"title=Field Name" validate:"required"`
	Deps []string `mapstructure:"deps" json:"deps" yaml:"deps" jsonschema:"title=Input Fields" validate:"required,min=1"`
	Expr string   `mapstructure:"expr" json:"expr" yaml:"expr" jsonschema:"title=CEL Expression" validate:"required"`
}

// RelationConfig declares a relation field.
//
//	one:  this.field  -> target.references (default _id)
//	many: this.field[] -> target.references (default _id)
//	ref:  target.references == this.field (field defaults to _id)
type RelationConfig struct {
	Name       string `mapstructure:"name" json:"name" yaml:"name" jsonschema:"title=Field Name" validate:"required"`
	Kind       string `mapstructure:"kind" json:"kind" yaml:"kind" jsonschema:"title=Kind,enum=one,enum=many,enum=ref" validate:"required,oneof=one many ref"`
	Target     string `mapstructure:"target" json:"target" yaml:"target" jsonschema:"title=Target Schema" validate:"required"`
	Field      string `mapstructure:"field" json:"field,omitempty" yaml:"field,omitempty" jsonschema:"title=Local Field"`
	References string `mapstructure:"references" json:"references,omitempty" yaml:"references,omitempty" jsonschema:"title=Target Field"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed on '%s'", fe.Namespace(), fe.Tag())
			}
			return &ConfigurationError{Reason: strings.Join(msgs, "; ")}
		}
		return err
	}

	seen := make(map[string]struct{}, len(c.Schemas))
	for _, s := range c.Schemas {
		if _, ok := seen[s.Name]; ok {
			return &ConfigurationError{Schema: s.Name, Reason: "schema already defined"}
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// decl returns the relation declaration with field defaults applied.
func (rc RelationConfig) decl() (sdata.RelationDecl, error) {
	kind, err := sdata.ParseCardinality(rc.Kind)
	if err != nil {
		return sdata.RelationDecl{}, err
	}

	field, refs := rc.Field, rc.References
	switch kind {
	case sdata.RelOne, sdata.RelMany:
		if field == "" {
			field = rc.Name
		}
		if refs == "" {
			refs = "_id"
		}
	case sdata.RelRef:
		if field == "" {
			field = "_id"
		}
	}

	return sdata.RelationDecl{
		Name:        rc.Name,
		Cardinality: kind,
		Target:      rc.Target,
		SchemaField: field,
		TargetField: refs,
	}, nil
}

// buildRegistry runs the two-phase registry build: every schema is added,
// then relations are declared against target names, then resolved.
func buildRegistry(conf *Config) (*sdata.Registry, error) {
	b := sdata.NewBuilder()

	for _, sc := range conf.Schemas {
		virtuals := make([]*sdata.Virtual, 0, len(sc.Virtuals))
		for _, vc := range sc.Virtuals {
			v, err := sdata.NewVirtual(vc.Name, vc.Deps, vc.Expr)
			if err != nil {
				return nil, &ConfigurationError{Schema: sc.Name, Reason: err.Error()}
			}
			virtuals = append(virtuals, v)
		}

		s := sdata.NewSchema(sc.Name, sc.Collection, sc.Omit, virtuals...)
		if err := b.AddSchema(s); err != nil {
			return nil, err
		}
	}

	for _, sc := range conf.Schemas {
		if len(sc.Relations) == 0 {
			continue
		}
		decls := make([]sdata.RelationDecl, 0, len(sc.Relations))
		for _, rc := range sc.Relations {
			d, err := rc.decl()
			if err != nil {
				return nil, &ConfigurationError{Schema: sc.Name, Reason: err.Error()}
			}
			decls = append(decls, d)
		}
		if err := b.Register(sc.Name, decls...); err != nil {
			return nil, err
		}
	}

	return b.Finalize()
}
