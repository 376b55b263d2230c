package normalize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Supplier payloads are loose about types. The decoders below never fail on a
// wrong shape; an unusable value is simply absent so the fallback chain moves on.

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// Num is a number that may arrive as a JSON number or a string like "8,5" or "4EST".
type Num struct {
	v  float64
	ok bool
}

func (n *Num) UnmarshalJSON(b []byte) error {
	n.v, n.ok = parseNum(b)
	return nil
}

func parseNum(b []byte) (float64, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, false
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		m := leadingNumber.FindString(s)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		return f, err == nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	return f, err == nil
}

// Str is a string that may arrive as a JSON string or a bare number (supplier ids).
type Str string

func (s *Str) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*s = ""
			return nil
		}
		*s = Str(strings.TrimSpace(v))
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*s = Str(b)
	default:
		*s = ""
	}
	return nil
}

// Bool is true only for JSON true, "true" or 1.
type Bool bool

func (v *Bool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`)) {
	case "true", "1":
		*v = true
	default:
		*v = false
	}
	return nil
}

// Children accepts either a list of ages or a count.
type Children struct {
	n int
}

func (c *Children) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var ages []json.RawMessage
		if err := json.Unmarshal(b, &ages); err == nil {
			c.n = len(ages)
		}
		return nil
	}
	if f, ok := parseNum(b); ok && f > 0 {
		c.n = int(f)
	}
	return nil
}

// Strings accepts a list of strings, a list of {name|url|src} objects or a comma separated string.
type Strings []string

func (s *Strings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*s = nil
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var v string
		if json.Unmarshal(b, &v) == nil {
			for _, part := range strings.Split(v, ",") {
				if t := strings.TrimSpace(part); t != "" {
					*s = append(*s, t)
				}
			}
		}
		return nil
	}
	var items []any
	if json.Unmarshal(b, &items) != nil {
		return nil
	}
	for _, it := range items {
		switch t := it.(type) {
		case string:
			if t = strings.TrimSpace(t); t != "" {
				*s = append(*s, t)
			}
		case map[string]any:
			for _, k := range []string{"name", "url", "src"} {
				if v, ok := t[k].(string); ok && strings.TrimSpace(v) != "" {
					*s = append(*s, strings.TrimSpace(v))
					break
				}
			}
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Time is a timestamp in any of the layouts suppliers are known to send. Zone-less values are UTC.
type Time struct {
	t  time.Time
	ok bool
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.t, t.ok = v.UTC(), true
			return nil
		}
	}
	return nil
}

/********** fallback helpers **********/

// firstNum returns the first present non-zero value, mirroring "a || b || null".
func firstNum(ns ...Num) *float64 {
	for _, n := range ns {
		if n.ok && n.v != 0 {
			v := n.v
			return &v
		}
	}
	return nil
}

func firstNumOr(def float64, ns ...Num) float64 {
	if v := firstNum(ns...); v != nil {
		return *v
	}
	return def
}

func firstInt(ns ...Num) *int {
	if v := firstNum(ns...); v != nil {
		x := int(*v)
		return &x
	}
	return nil
}

func firstStr(ss ...Str) string {
	for _, s := range ss {
		if s != "" {
			return string(s)
		}
	}
	return ""
}

func firstStrPtr(ss ...Str) *string {
	if s := firstStr(ss...); s != "" {
		return &s
	}
	return nil
}

func firstStrings(ss ...Strings) []string {
	for _, s := range ss {
		if len(s) > 0 {
			return s
		}
	}
	return nil
}

func firstTime(ts ...Time) *time.Time {
	for _, t := range ts {
		if t.ok {
			v := t.t
			return &v
		}
	}
	return nil
}

func firstChildren(cs ...Children) int {
	for _, c := range cs {
		if c.n > 0 {
			return c.n
		}
	}
	return 0
}
