package sqlvec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/vec"
)

// sqlType maps a schema type tag onto a SQLite storage class. Vectors are
// little-endian float32 blobs, text arrays are JSON-encoded.
func sqlType(columnType string) string {
	if _, ok := domain.VectorDim(columnType); ok {
		return "BLOB"
	}
	switch columnType {
	case domain.TypeBoolean:
		return "INTEGER"
	case domain.TypeTextArray:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// encodeValue converts a row value to its driver representation for the
// declared column type.
func encodeValue(columnType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := domain.VectorDim(columnType); ok {
		f, ok := v.([]float32)
		if !ok {
			return nil, fmt.Errorf("expected []float32 for vector column, got %T", v)
		}
		return vec.Encode(f), nil
	}
	switch columnType {
	case domain.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool for boolean column, got %T", v)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case domain.TypeTextArray:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal text array: %w", err)
		}
		return string(data), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// decodeValue converts a scanned driver value back to its domain form.
func decodeValue(columnType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := domain.VectorDim(columnType); ok {
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected blob for vector column, got %T", v)
		}
		return vec.Decode(b)
	}
	switch columnType {
	case domain.TypeBoolean:
		switch b := v.(type) {
		case int64:
			return b != 0, nil
		case bool:
			return b, nil
		default:
			return nil, fmt.Errorf("expected integer for boolean column, got %T", v)
		}
	case domain.TypeTextArray:
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, fmt.Errorf("unmarshal text array: %w", err)
		}
		return arr, nil
	default:
		return asString(v)
	}
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("expected text, got %T", v)
	}
}
