package core

// SchemaInfo describes a configured schema.
type SchemaInfo struct {
	Name       string         `json:"name"`
	Collection string         `json:"collection"`
	Omit       []string       `json:"omit,omitempty"`
	Virtuals   []string       `json:"virtuals,omitempty"`
	Relations  []RelationInfo `json:"relations,omitempty"`
}

type RelationInfo struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Target     string `json:"target"`
	Field      string `json:"field"`
	References string `json:"references"`
}

// Schemas lists the configured schemas in configuration order.
func (e *Engine) Schemas() []SchemaInfo {
	names := e.reg.Names()
	list := make([]SchemaInfo, 0, len(names))

	for _, name := range names {
		s, err := e.reg.Schema(name)
		if err != nil {
			continue
		}
		si := SchemaInfo{
			Name:       s.Name,
			Collection: s.Collection,
			Omit:       s.Omit,
		}
		for _, v := range s.Virtuals {
			si.Virtuals = append(si.Virtuals, v.Name)
		}
		for _, r := range s.Relations() {
			si.Relations = append(si.Relations, RelationInfo{
				Name:       r.Name,
				Kind:       r.Cardinality.String(),
				Target:     r.TargetName,
				Field:      r.SchemaField,
				References: r.TargetField,
			})
		}
		list = append(list, si)
	}
	return list
}
