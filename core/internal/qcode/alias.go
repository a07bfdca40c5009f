package qcode

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

const aliasPrefix = "__pop_"

// aliasKey is the structural identity of a join. Two joins share a key only
// when they are the same relation requested at the same depth from the same
// schema, which the request validator already rules out for siblings.
type aliasKey struct {
	Depth       int
	Schema      string
	Field       string
	Target      string
	SchemaField string
	TargetField string
}

// aliasFor returns the staging field and the $lookup let variable for a
// join. Both are pure functions of the join's identity.
func aliasFor(k aliasKey) (alias, letVar string, err error) {
	h, err := hashstructure.Hash(k, hashstructure.FormatV2, nil)
	if err != nil {
		return "", "", fmt.Errorf("alias for %s.%s: %w", k.Schema, k.Field, err)
	}
	alias = fmt.Sprintf("%s%016x", aliasPrefix, h)
	// let variables must start with a lowercase letter
	letVar = fmt.Sprintf("pop_%016x", h)
	return alias, letVar, nil
}

// IsAlias reports whether a document key is a staging alias.
func IsAlias(key string) bool {
	return len(key) > len(aliasPrefix) && key[:len(aliasPrefix)] == aliasPrefix
}
