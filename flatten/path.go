package flatten

import "strings"

// Sep joins the keys of nested documents into a column name.
const Sep = "."

// Join builds the dotted path of a nested field.
//
// Example:
// Join("address", "geo", "lat") returns "address.geo.lat"
func Join(parts ...string) string {
	return strings.Join(parts, Sep)
}

// Split breaks a dotted path into its keys.
func Split(path string) []string {
	return strings.Split(path, Sep)
}

func child(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + Sep + key
}
