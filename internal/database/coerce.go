package database

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

type jsonType int

const (
	jsonText jsonType = iota
	jsonInteger
	jsonFloat
)

// postgresTypes maps the type names pgx reports to JSON types. Anything not
// listed becomes text.
var postgresTypes = map[string]jsonType{
	"INT2":   jsonInteger,
	"INT4":   jsonInteger,
	"INT8":   jsonInteger,
	"FLOAT4": jsonFloat,
	"FLOAT8": jsonFloat,
}

func postgresType(dbType string) jsonType {
	return postgresTypes[strings.ToUpper(dbType)]
}

// sqliteType follows SQLite's column affinity rules on the declared type, so
// INTEGER(10), BIGINT UNSIGNED and MEDIUMINT are integers. NUMERIC affinity
// (DECIMAL, BOOLEAN, DATE) stays text.
func sqliteType(dbType string) jsonType {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "INT"):
		return jsonInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return jsonText
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return jsonFloat
	default:
		return jsonText
	}
}

// coerce converts a scanned value to int64, float64, string or nil according
// to the column's declared type. Columns with no declared type (expressions
// in sqlite) keep the driver's numeric kind.
func coerce(typeOf func(string) jsonType, dbType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	typ := typeOf(dbType)
	if dbType == "" {
		switch v.(type) {
		case int64, int32, int:
			typ = jsonInteger
		case float64, float32:
			typ = jsonFloat
		}
	}

	switch typ {
	case jsonInteger:
		return cast.ToInt64E(v)
	case jsonFloat:
		return cast.ToFloat64E(v)
	default:
		return text(v)
	}
}

func text(v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly), nil
		}
		return t.Format(time.RFC3339Nano), nil
	default:
		return cast.ToStringE(v)
	}
}
