// Package normalize canonicalizes result values so results produced by the
// engine and literal reference rows compare equal when they mean the same
// thing.
//
// Canonical forms:
//
//	nil                      nil
//	bool, string             unchanged
//	time.Time                "YYYY-MM-DD" (UTC calendar date, time of day dropped)
//	integers of any width    int64
//	floats, DECIMAL          rounded to 9 places; int64 when integral, else float64
//	*big.Int (HUGEINT)       int64 when in range, else its decimal string
//	anything else            its fmt.Sprint form
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical text form of dates and timestamps.
const DateLayout = "2006-01-02"

// Value returns the canonical form of v.
func Value(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(DateLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(DateLayout)

	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return fromUint(x)
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)

	case *big.Int:
		if x == nil {
			return nil
		}
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Decimal:
		return fromDecimal(x)
	case *duckdb.Decimal:
		if x == nil {
			return nil
		}
		return fromDecimal(*x)
	case decimal.Decimal:
		f, _ := x.Float64()
		return fromFloat(f)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return fromFloat(f)
		}
		return x.String()

	default:
		return fmt.Sprint(x)
	}
}

// Row returns the canonical form of every value in row.
func Row(row []interface{}) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = Value(v)
	}
	return out
}

func fromDecimal(d duckdb.Decimal) interface{} {
	if d.Value == nil {
		return nil
	}
	f, _ := decimal.NewFromBigInt(d.Value, -int32(d.Scale)).Float64()
	return fromFloat(f)
}

func fromUint(u uint64) interface{} {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

// roundLimit bounds the magnitudes that are rounded. Above it a float64 has
// no digits left at the ninth decimal place.
const roundLimit = 1e6

// fromFloat rounds to 9 decimal places and collapses integral floats onto
// int64 so 150, 150.0 and DECIMAL '150.00' share one canonical value.
func fromFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	if math.Abs(f) < roundLimit {
		f = math.Round(f*1e9) / 1e9
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}
