package kdtab

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"modernc.org/sqlite/vtab"

	"github.com/viant/sqlite-kdtree/vector"
)

// decodeMatchArg accepts an embedding BLOB, a JSON float array, a base64
// encoded BLOB or a comma separated list.
func decodeMatchArg(v interface{}) ([]float32, error) {
	switch val := v.(type) {
	case []byte:
		return vector.DecodeEmbedding(val)
	case string:
		return decodeMatchString(val)
	default:
		return nil, fmt.Errorf("kdtab: expected MATCH arg as BLOB or string, got %T", v)
	}
}

func decodeMatchString(raw string) ([]float32, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("kdtab: MATCH string is empty")
	}
	if strings.HasPrefix(s, "[") {
		var floats []float64
		if err := json.Unmarshal([]byte(s), &floats); err != nil {
			return nil, fmt.Errorf("kdtab: invalid MATCH JSON: %w", err)
		}
		vec := make([]float32, len(floats))
		for i, f := range floats {
			vec[i] = float32(f)
		}
		return vec, nil
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		vec := make([]float32, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			f, err := strconv.ParseFloat(p, 32)
			if err != nil {
				return nil, fmt.Errorf("kdtab: invalid MATCH float %q: %w", p, err)
			}
			vec = append(vec, float32(f))
		}
		if len(vec) > 0 {
			return vec, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		if vec, err := vector.DecodeEmbedding(b); err == nil && len(vec) > 0 {
			return vec, nil
		}
	}
	return nil, fmt.Errorf("kdtab: MATCH string must be base64-encoded embedding or JSON/CSV float list")
}

func asInt(v vtab.Value) (int, error) {
	switch val := v.(type) {
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("kdtab: cannot parse k %q: %w", val, err)
		}
		return n, nil
	case []byte:
		return asInt(string(val))
	default:
		return 0, fmt.Errorf("kdtab: unsupported k type %T", v)
	}
}

func asString(v vtab.Value) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", fmt.Errorf("kdtab: gallery_id is nil")
	default:
		return "", fmt.Errorf("kdtab: unsupported gallery_id type %T", v)
	}
}
