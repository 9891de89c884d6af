package catalog

import "strconv"

// Str returns the record field as a string; numbers are formatted, anything
// else is "".
func (r RawRecord) Str(key string) string {
	switch x := r[key].(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	}
	return ""
}

// Int returns the record field as an int; strings are parsed, anything else
// is 0.
func (r RawRecord) Int(key string) int {
	switch x := r[key].(type) {
	case float64:
		return int(x)
	case int:
		return x
	case string:
		n, _ := strconv.Atoi(x)
		return n
	}
	return 0
}

// FirstStr returns the first non-empty Str among keys.
func (r RawRecord) FirstStr(keys ...string) string {
	for _, k := range keys {
		if s := r.Str(k); s != "" {
			return s
		}
	}
	return ""
}
