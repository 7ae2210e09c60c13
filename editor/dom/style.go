package dom

import "strings"

type declaration struct {
	prop, value string
}

// declarations is an ordered inline style.
type declarations []declaration

func parseStyle(s string) declarations {
	var out declarations
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		out = out.set(prop, value)
	}
	return out
}

// set replaces prop in place, appends it, or removes it when value is empty.
func (ds declarations) set(prop, value string) declarations {
	for i, d := range ds {
		if d.prop != prop {
			continue
		}
		if value == "" {
			return append(ds[:i:i], ds[i+1:]...)
		}
		ds[i].value = value
		return ds
	}
	if value == "" {
		return ds
	}
	return append(ds, declaration{prop: prop, value: value})
}

func (ds declarations) get(prop string) string {
	for _, d := range ds {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

func (ds declarations) String() string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.prop + ": " + d.value
	}
	return strings.Join(parts, "; ")
}
