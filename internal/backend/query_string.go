// Package backend holds the outbound plumbing shared by the search backends:
// query string encoding, the injectable fetch function and its wrappers, and
// JSON GETs with remote error translation.
package backend

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// BuildQueryString encodes params as "k=v" pairs joined with "&", keys sorted.
// Nil values, empty strings, nil pointers and empty slices are dropped, so the
// literal strings "null" and "undefined" never reach a backend.
func BuildQueryString(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, ok := format(params[k])
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	return b.String()
}

func format(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case *string:
		if x == nil {
			return "", false
		}
		return format(*x)
	case int:
		return strconv.Itoa(x), true
	case *int:
		if x == nil {
			return "", false
		}
		return strconv.Itoa(*x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	case *bool:
		if x == nil {
			return "", false
		}
		return strconv.FormatBool(*x), true
	case []string:
		if len(x) == 0 {
			return "", false
		}
		return strings.Join(x, ","), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

// JoinURL appends a path and an encoded query to a base URL.
func JoinURL(base, path, query string) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if query == "" {
		return u
	}
	return u + "?" + query
}
