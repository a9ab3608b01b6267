package doctable

import "bytes"

// Catalog key layout:
//
//	t | database | 0x00 | collection   -> bson encoded Table
var TablePrefix = byte('t')

var keySep = []byte{0x00}

func NewTableKey(database, collection string) []byte {
	out := make([]byte, 0, len(database)+len(collection)+2)
	out = append(out, TablePrefix)
	out = append(out, database...)
	out = append(out, keySep...)
	out = append(out, collection...)
	return out
}

// NewTablePrefix returns the prefix shared by every table key of a database.
func NewTablePrefix(database string) []byte {
	out := make([]byte, 0, len(database)+2)
	out = append(out, TablePrefix)
	out = append(out, database...)
	return append(out, keySep...)
}

func ParseTableKey(key []byte) (string, string) {
	body := key[1:]
	i := bytes.Index(body, keySep)
	if i < 0 {
		return string(body), ""
	}
	return string(body[:i]), string(body[i+1:])
}
