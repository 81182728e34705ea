package storage

import "fmt"

// migration переводит документ с версии N на N+1, изменяя его на месте.
type migration func(doc map[string]any) error

var migrations = map[int]migration{
	0: migrate0to1,
}

// Migrate applies forward-only migrations up to SchemaVersion.
func Migrate(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	v, err := schemaVersion(doc)
	if err != nil {
		return nil, err
	}
	if v > SchemaVersion {
		return nil, fmt.Errorf("snapshot schema %d is newer than supported %d", v, SchemaVersion)
	}
	for v < SchemaVersion {
		m, ok := migrations[v]
		if !ok {
			return nil, fmt.Errorf("no migration from schema %d", v)
		}
		if err := m(doc); err != nil {
			return nil, fmt.Errorf("migrate %d -> %d: %w", v, v+1, err)
		}
		v++
		doc["schema_version"] = v
	}
	return doc, nil
}

func schemaVersion(doc map[string]any) (int, error) {
	raw, ok := doc["schema_version"]
	if !ok || raw == nil {
		return 0, nil
	}
	f, ok := raw.(float64)
	if !ok || f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid schema_version %v", raw)
	}
	return int(f), nil
}

// migrate0to1 guarantees the top-level maps exist.
func migrate0to1(doc map[string]any) error {
	for _, k := range []string{"items", "locations"} {
		switch doc[k].(type) {
		case map[string]any:
		case nil:
			doc[k] = map[string]any{}
		default:
			return fmt.Errorf("%s must be an object", k)
		}
	}
	return nil
}
