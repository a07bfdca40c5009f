package mongodriver

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/dosco/graphjin/populate/v3/core"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FieldInfo describes a discovered top-level field.
type FieldInfo struct {
	Name     string `json:"name"`
	BSONType string `json:"bson_type"`
	Required bool   `json:"required"`
	IsArray  bool   `json:"is_array"`
}

// Finding is a relation whose join field was not seen in the collection.
type Finding struct {
	Schema     string `json:"schema"`
	Relation   string `json:"relation"`
	Collection string `json:"collection"`
	Field      string `json:"field"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s.%s: field '%s' not found in collection '%s'",
		f.Schema, f.Relation, f.Field, f.Collection)
}

// SampleFields returns the fields declared by the collection's
// $jsonSchema validator merged with the fields seen in a random sample of
// documents.
func (c *Conn) SampleFields(ctx context.Context, collection string, sampleSize int) (map[string]FieldInfo, error) {
	if sampleSize <= 0 {
		sampleSize = 100
	}
	declared := c.collectionValidator(ctx, collection)

	sampled, err := c.sampleCollectionFields(ctx, collection, sampleSize)
	if err != nil {
		return nil, err
	}
	return mergeFields(declared, sampled), nil
}

// CheckRelations samples the collections behind every relation and reports
// join fields that appear in neither the validator nor the sampled
// documents. Empty collections are skipped.
func (c *Conn) CheckRelations(ctx context.Context, schemas []core.SchemaInfo, sampleSize int) ([]Finding, error) {
	colls := make(map[string]string, len(schemas))
	for _, s := range schemas {
		colls[s.Name] = s.Collection
	}

	cache := make(map[string]map[string]FieldInfo)
	fieldsOf := func(coll string) (map[string]FieldInfo, error) {
		if f, ok := cache[coll]; ok {
			return f, nil
		}
		f, err := c.SampleFields(ctx, coll, sampleSize)
		if err != nil {
			return nil, err
		}
		cache[coll] = f
		return f, nil
	}

	var found []Finding
	check := func(s core.SchemaInfo, r core.RelationInfo, coll, field string) error {
		if field == "_id" {
			return nil
		}
		fields, err := fieldsOf(coll)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if _, ok := fields[field]; !ok {
			found = append(found, Finding{
				Schema:     s.Name,
				Relation:   r.Name,
				Collection: coll,
				Field:      field,
			})
		}
		return nil
	}

	for _, s := range schemas {
		for _, r := range s.Relations {
			if err := check(s, r, s.Collection, r.Field); err != nil {
				return nil, err
			}
			if err := check(s, r, colls[r.Target], r.References); err != nil {
				return nil, err
			}
		}
	}
	return found, nil
}

// collectionValidator reads the $jsonSchema validator of a collection.
// Collections without one yield an empty map.
func (c *Conn) collectionValidator(ctx context.Context, collName string) map[string]FieldInfo {
	fields := make(map[string]FieldInfo)

	cursor, err := c.db.ListCollections(ctx, bson.M{"name": collName})
	if err != nil {
		return fields
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		return fields
	}

	var info struct {
		Options struct {
			Validator struct {
				JSONSchema struct {
					Properties map[string]struct {
						BSONType any `bson:"bsonType"`
					} `bson:"properties"`
					Required []string `bson:"required"`
				} `bson:"$jsonSchema"`
			} `bson:"validator"`
		} `bson:"options"`
	}
	if err := cursor.Decode(&info); err != nil {
		return fields
	}

	required := make(map[string]bool)
	for _, r := range info.Options.Validator.JSONSchema.Required {
		required[r] = true
	}

	for name, prop := range info.Options.Validator.JSONSchema.Properties {
		t := normalizeBSONType(prop.BSONType)
		fields[name] = FieldInfo{
			Name:     name,
			BSONType: t,
			Required: required[name],
			IsArray:  t == "array",
		}
	}
	return fields
}

func (c *Conn) sampleCollectionFields(ctx context.Context, collName string, sampleSize int) (map[string]FieldInfo, error) {
	fields := make(map[string]FieldInfo)

	pipeline := bson.A{
		bson.M{"$sample": bson.M{"size": sampleSize}},
	}

	cursor, err := c.db.Collection(collName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: sample %s: %w", collName, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		for key, val := range doc {
			if _, ok := fields[key]; ok {
				continue
			}
			t := inferBSONType(val)
			fields[key] = FieldInfo{
				Name:     key,
				BSONType: t,
				Required: key == "_id",
				IsArray:  t == "array",
			}
		}
	}
	return fields, cursor.Err()
}

// FieldNames returns the keys of fields in sorted order.
func FieldNames(fields map[string]FieldInfo) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func inferBSONType(v any) string {
	if v == nil {
		return "null"
	}

	switch v.(type) {
	case bson.ObjectID:
		return "objectId"
	case string:
		return "string"
	case int32:
		return "int"
	case int, int64:
		return "long"
	case float32, float64:
		return "double"
	case bson.Decimal128:
		return "decimal"
	case bool:
		return "bool"
	case bson.DateTime:
		return "date"
	case bson.A, []any:
		return "array"
	case bson.M, bson.D, map[string]any:
		return "object"
	case bson.Binary:
		return "binData"
	}

	rt := reflect.TypeOf(v)
	switch rt.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return "string"
}

// normalizeBSONType handles bsonType being a string or a list of types.
func normalizeBSONType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bson.A:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return "string"
}

// mergeFields prefers validator fields over sampled ones.
func mergeFields(declared, sampled map[string]FieldInfo) map[string]FieldInfo {
	out := make(map[string]FieldInfo, len(declared)+len(sampled))
	for k, v := range declared {
		out[k] = v
	}
	for k, v := range sampled {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}
