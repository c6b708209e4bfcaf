package canonicalize

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// maxExponent bounds the decimal exponent expanded into an exact rational.
// Literals beyond it compare by their normalized text.
const maxExponent = 4096

// number is a JSON number held exactly when its exponent allows it.
type number struct {
	rat  *big.Rat
	text string
}

func (n number) equal(o number) bool {
	if n.rat != nil && o.rat != nil {
		return n.rat.Cmp(o.rat) == 0
	}
	return n.rat == nil && o.rat == nil && n.text == o.text
}

func (n number) key() string {
	if n.rat != nil {
		return n.rat.RatString()
	}
	return "~" + n.text
}

// asNumber recognizes the number representations a decoded document may hold.
func asNumber(v any) (number, bool) {
	switch n := v.(type) {
	case json.Number:
		return parseNumber(string(n)), true
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return number{text: strconv.FormatFloat(n, 'g', -1, 64)}, true
		}
		return number{rat: new(big.Rat).SetFloat64(n)}, true
	case int:
		return number{rat: new(big.Rat).SetInt64(int64(n))}, true
	case int64:
		return number{rat: new(big.Rat).SetInt64(n)}, true
	}
	return number{}, false
}

func parseNumber(s string) number {
	text := strings.ToLower(s)
	if i := strings.IndexByte(text, 'e'); i >= 0 {
		exp, err := strconv.Atoi(text[i+1:])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return number{text: text}
		}
	}
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return number{text: text}
	}
	return number{rat: r}
}

// Equal reports whether a and b are structurally equal decoded JSON values.
//
// Object key order is irrelevant and numbers compare by exact value, so 1, 1.0 and 1e0 are
// equal while 9007199254740993 and 9007199254740992 are not.
func Equal(a, b any) bool {
	if na, ok := asNumber(a); ok {
		nb, ok := asNumber(b)
		return ok && na.equal(nb)
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !Equal(x, y) {
				return false
			}
		}
		return true
	}
	return Key(a) == Key(b)
}

// Key returns a string that is identical for two values exactly when Equal holds,
// for use as a set or map key.
func Key(v any) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v any) {
	if n, ok := asNumber(v); ok {
		sb.WriteString(n.key())
		return
	}
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		sb.WriteString(strconv.FormatBool(x))
	case string:
		sb.WriteString(strconv.Quote(x))
	case []any:
		sb.WriteByte('[')
		for i, el := range x {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeKey(sb, el)
		}
		sb.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			writeKey(sb, x[k])
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "%#v", x)
	}
}
