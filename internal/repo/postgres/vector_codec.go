package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/circle-system/swipeengine/internal/model"
)

// decodeVector normalizes a column value into a model.Vector regardless of
// whether it was stored as a native pgvector column or (for rows written
// before a migration, or by an external writer) a JSON-encoded array of
// numbers. This is the single place that tolerates both shapes, per the
// spec's guidance to parse once at the repository boundary rather than
// sprinkling conditional parsing through the core.
func decodeVector(raw any) (model.Vector, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case pgvector.Vector:
		slice := v.Slice()
		out := make(model.Vector, len(slice))
		for i, f := range slice {
			out[i] = float64(f)
		}
		return out, nil
	case []byte:
		var floats []float64
		if err := json.Unmarshal(v, &floats); err != nil {
			return nil, fmt.Errorf("postgres: decode vector from JSON bytes: %w", err)
		}
		return model.Vector(floats), nil
	case string:
		var floats []float64
		if err := json.Unmarshal([]byte(v), &floats); err != nil {
			return nil, fmt.Errorf("postgres: decode vector from JSON string: %w", err)
		}
		return model.Vector(floats), nil
	default:
		return nil, fmt.Errorf("postgres: unsupported stored vector shape %T", raw)
	}
}

// encodeVector converts a model.Vector to the pgvector wire type used for
// writes; new rows are always written in the native column shape.
func encodeVector(v model.Vector) pgvector.Vector {
	floats := make([]float32, len(v))
	for i, f := range v {
		floats[i] = float32(f)
	}
	return pgvector.NewVector(floats)
}
