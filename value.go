package doctable

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindLong
	KindDouble
	KindDecimal
	KindString
	KindBinary
	KindDateTime
	KindDocument
	KindArray
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBoolean:  "boolean",
	KindInteger:  "integer",
	KindLong:     "long",
	KindDouble:   "double",
	KindDecimal:  "decimal",
	KindString:   "string",
	KindBinary:   "binary",
	KindDateTime: "datetime",
	KindDocument: "document",
	KindArray:    "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a single document field value. The zero Value is Null.
// Only the payload matching kind is meaningful.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	d    decimal.Decimal
	s    string
	bin  []byte
	t    time.Time
	doc  Document
	arr  []Value
}

// Field is one key/value pair of a Document.
type Field struct {
	Key   string
	Value Value
}

// Document is an ordered list of fields, in the order the store returned them.
type Document []Field

// Get returns the value stored under key. ok is false when the field is absent.
func (d Document) Get(key string) (Value, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (d Document) Keys() []string {
	out := make([]string, len(d))
	for i, f := range d {
		out[i] = f.Key
	}
	return out
}

func Null() Value { return Value{} }
func NewBoolean(b bool) Value { return Value{kind: KindBoolean, b: b} }
func NewInteger(i int32) Value { return Value{kind: KindInteger, i: int64(i)} }
func NewLong(i int64) Value { return Value{kind: KindLong, i: i} }
func NewDouble(f float64) Value { return Value{kind: KindDouble, f: f} }
func NewDecimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, d: d} }
func NewString(s string) Value { return Value{kind: KindString, s: s} }
func NewDateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t.UTC()} }
func NewDocument(doc Document) Value { return Value{kind: KindDocument, doc: doc} }
func NewArray(values ...Value) Value { return Value{kind: KindArray, arr: values} }

func NewBinary(b []byte) Value {
	out := make([]byte, len(b))
	copy(out, b)
	return Value{kind: KindBinary, bin: out}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool { return v.b }
func (v Value) Int64() int64 { return v.i }
func (v Value) Float64() float64 { return v.f }
func (v Value) Decimal() decimal.Decimal { return v.d }
func (v Value) Str() string { return v.s }
func (v Value) Bytes() []byte { return v.bin }
func (v Value) Time() time.Time { return v.t }
func (v Value) Document() Document { return v.doc }
func (v Value) Array() []Value { return v.arr }

// Interface returns the plain Go representation of the value.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBoolean:
		return v.b
	case KindInteger:
		return int32(v.i)
	case KindLong:
		return v.i
	case KindDouble:
		return v.f
	case KindDecimal:
		return v.d
	case KindString:
		return v.s
	case KindBinary:
		return v.bin
	case KindDateTime:
		return v.t
	case KindDocument:
		out := make(map[string]any, len(v.doc))
		for _, f := range v.doc {
			out[f.Key] = f.Value.Interface()
		}
		return out
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	}
	panic(fmt.Sprintf("doctable: unhandled value kind %s", v.kind))
}

// String renders the canonical text form of the value. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindDocument, KindArray:
		sb := &strings.Builder{}
		v.render(sb)
		return sb.String()
	}
	return v.scalarString()
}

func (v Value) scalarString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindInteger, KindLong:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDecimal:
		return v.d.String()
	case KindString:
		return v.s
	case KindBinary:
		return hex.EncodeToString(v.bin)
	case KindDateTime:
		return v.t.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// render writes nested values; strings inside containers are quoted.
func (v Value) render(sb *strings.Builder) {
	switch v.kind {
	case KindDocument:
		sb.WriteByte('{')
		for i, f := range v.doc {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(f.Key))
			sb.WriteString(": ")
			f.Value.render(sb)
		}
		sb.WriteByte('}')
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.render(sb)
		}
		sb.WriteByte(']')
	case KindString, KindBinary, KindDateTime:
		sb.WriteString(strconv.Quote(v.scalarString()))
	case KindNull:
		sb.WriteString("null")
	default:
		sb.WriteString(v.scalarString())
	}
}

// Equal reports whether two values hold the same variant and payload.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.b == b.b
	case KindInteger, KindLong:
		return a.i == b.i
	case KindDouble:
		return a.f == b.f
	case KindDecimal:
		return a.d.Equal(b.d)
	case KindString:
		return a.s == b.s
	case KindBinary:
		return string(a.bin) == string(b.bin)
	case KindDateTime:
		return a.t.Equal(b.t)
	case KindDocument:
		if len(a.doc) != len(b.doc) {
			return false
		}
		for i := range a.doc {
			if a.doc[i].Key != b.doc[i].Key || !Equal(a.doc[i].Value, b.doc[i].Value) {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// FromBSON converts a value decoded by the mongo driver into a Value.
func FromBSON(in any) Value {
	switch v := in.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case bool:
		return NewBoolean(v)
	case int32:
		return NewInteger(v)
	case int64:
		return NewLong(v)
	case int:
		return NewLong(int64(v))
	case float64:
		return NewDouble(v)
	case float32:
		return NewDouble(float64(v))
	case string:
		return NewString(v)
	case primitive.ObjectID:
		return NewString(v.Hex())
	case primitive.DateTime:
		return NewDateTime(v.Time())
	case time.Time:
		return NewDateTime(v)
	case primitive.Timestamp:
		return NewDateTime(time.Unix(int64(v.T), 0))
	case primitive.Decimal128:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			// NaN and infinities have no decimal form
			return NewString(v.String())
		}
		return NewDecimal(d)
	case decimal.Decimal:
		return NewDecimal(v)
	case primitive.Binary:
		return NewBinary(v.Data)
	case []byte:
		return NewBinary(v)
	case primitive.Regex:
		return NewString(v.String())
	case primitive.JavaScript:
		return NewString(string(v))
	case primitive.Symbol:
		return NewString(string(v))
	case primitive.CodeWithScope:
		return NewString(v.String())
	case primitive.DBPointer:
		return NewString(v.String())
	case primitive.Null, primitive.Undefined, primitive.MinKey, primitive.MaxKey:
		return Null()
	case primitive.D:
		return NewDocument(DocumentFromBSON(v))
	case primitive.M:
		return NewDocument(documentFromMap(v))
	case map[string]any:
		return NewDocument(documentFromMap(v))
	case primitive.A:
		return NewArray(arrayFromBSON(v)...)
	case []any:
		return NewArray(arrayFromBSON(v)...)
	case bson.Raw:
		var d primitive.D
		if err := bson.Unmarshal(v, &d); err != nil {
			return NewString(v.String())
		}
		return NewDocument(DocumentFromBSON(d))
	}
	return NewString(fmt.Sprint(in))
}

// DocumentFromBSON converts an ordered bson document.
func DocumentFromBSON(d primitive.D) Document {
	out := make(Document, len(d))
	for i, e := range d {
		out[i] = Field{Key: e.Key, Value: FromBSON(e.Value)}
	}
	return out
}

func documentFromMap(m map[string]any) Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Document, len(keys))
	for i, k := range keys {
		out[i] = Field{Key: k, Value: FromBSON(m[k])}
	}
	return out
}

func arrayFromBSON(a []any) []Value {
	out := make([]Value, len(a))
	for i, e := range a {
		out[i] = FromBSON(e)
	}
	return out
}

// ToBSON converts the value into the driver's wire representation.
func (v Value) ToBSON() (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBoolean:
		return v.b, nil
	case KindInteger:
		return int32(v.i), nil
	case KindLong:
		return v.i, nil
	case KindDouble:
		return v.f, nil
	case KindDecimal:
		d, err := primitive.ParseDecimal128(v.d.String())
		if err != nil {
			return nil, fmt.Errorf("%w: decimal %s does not fit decimal128: %v", ErrMalformedValue, v.d, err)
		}
		return d, nil
	case KindString:
		return v.s, nil
	case KindBinary:
		return primitive.Binary{Data: v.bin}, nil
	case KindDateTime:
		return primitive.NewDateTimeFromTime(v.t), nil
	case KindDocument:
		return v.doc.BSON()
	case KindArray:
		out := make(primitive.A, len(v.arr))
		for i, e := range v.arr {
			b, err := e.ToBSON()
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unhandled kind %s", ErrMalformedValue, v.kind)
}

// BSON converts the document back into an ordered bson document.
func (d Document) BSON() (primitive.D, error) {
	out := make(primitive.D, len(d))
	for i, f := range d {
		b, err := f.Value.ToBSON()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		out[i] = primitive.E{Key: f.Key, Value: b}
	}
	return out, nil
}
