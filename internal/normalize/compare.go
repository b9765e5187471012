package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"sql-sandbox/internal/domain"
)

// floatTolerance is the relative tolerance used when two canonical values
// are both numbers and at least one is fractional.
const floatTolerance = 1e-9

// Tuples projects rs onto columns, in that order, and canonicalizes every
// value. Every name in columns must exist in rs.
func Tuples(rs *domain.ResultSet, columns []string) ([][]interface{}, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j := rs.ColumnIndex(c)
		if j < 0 {
			return nil, fmt.Errorf("column %q not in result", c)
		}
		idx[i] = j
	}

	out := make([][]interface{}, len(rs.Rows))
	for r, row := range rs.Rows {
		t := make([]interface{}, len(idx))
		for i, j := range idx {
			if j < len(row) {
				t[i] = Value(row[j])
			}
		}
		out[r] = t
	}
	return out, nil
}

// Sort orders tuples by a total order over canonical values:
// nil < bool < numbers < strings < everything else.
func Sort(tuples [][]interface{}) {
	sort.SliceStable(tuples, func(i, j int) bool {
		return CompareTuples(tuples[i], tuples[j]) < 0
	})
}

// CompareTuples compares two tuples element by element.
func CompareTuples(a, b []interface{}) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Compare orders two canonical values.
func Compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case rankNumber:
		return compareNumbers(a, b)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Equal reports whether two canonical values are the same. Numbers compare
// across int64 and float64 with a small relative tolerance.
func Equal(a, b interface{}) bool {
	if rank(a) == rankNumber && rank(b) == rankNumber {
		ai, aInt := a.(int64)
		bi, bInt := b.(int64)
		if aInt && bInt {
			return ai == bi
		}
		return nearlyEqual(toFloat(a), toFloat(b))
	}
	return Compare(a, b) == 0
}

// EqualTuples reports whether two tuple lists are equal position by position.
func EqualTuples(a, b [][]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if !Equal(a[i][j], b[i][j]) {
				return false
			}
		}
	}
	return true
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int64, float64:
		return rankNumber
	case string:
		return rankString
	}
	return rankOther
}

func compareNumbers(a, b interface{}) int {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return cmpInt64(ai, bi)
	}
	af, bf := toFloat(a), toFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	case math.IsNaN(af) && !math.IsNaN(bf):
		return -1
	case !math.IsNaN(af) && math.IsNaN(bf):
		return 1
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

func nearlyEqual(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= floatTolerance*scale
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
