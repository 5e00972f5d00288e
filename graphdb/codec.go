package graphdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// recordVersion is the format version written ahead of every record
const recordVersion = 1

// Serialize converts a Node or Edge to its versioned binary form.
// All integers are little-endian; strings are length-prefixed UTF-8.
func Serialize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64)
	buf.WriteByte(recordVersion)

	switch val := v.(type) {
	case Node:
		writeInt64(&buf, val.ID)
		buf.WriteByte(btoi(val.Active))
		writeUint32(&buf, uint32(len(val.Labels)))
		for _, label := range val.Labels {
			writeString(&buf, label)
		}
		writeUint32(&buf, uint32(len(val.Properties)))
		for _, prop := range val.Properties {
			if err := writeProperty(&buf, prop); err != nil {
				return nil, fmt.Errorf("failed to serialize property %q: %w", prop.Key, err)
			}
		}
	case Edge:
		writeInt64(&buf, val.ID)
		buf.WriteByte(btoi(val.Active))
		writeString(&buf, val.Type)
		writeInt64(&buf, val.Source)
		writeInt64(&buf, val.Target)
		writeUint32(&buf, uint32(len(val.Properties)))
		for _, prop := range val.Properties {
			if err := writeProperty(&buf, prop); err != nil {
				return nil, fmt.Errorf("failed to serialize property %q: %w", prop.Key, err)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported type for serialization: %T", ErrInvalidArgument, v)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a versioned binary record into *Node or *Edge. Every
// length field is bounds-checked against the remaining buffer.
func Deserialize(data []byte, v interface{}) error {
	r := &recordReader{data: data}

	version, err := r.readByte("version")
	if err != nil {
		return err
	}
	if version != recordVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformed, version)
	}

	switch val := v.(type) {
	case *Node:
		return r.readNodeBody(val)
	case *Edge:
		return r.readEdgeBody(val)
	default:
		return fmt.Errorf("%w: unsupported type for deserialization: %T", ErrInvalidArgument, v)
	}
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

// writeProperty serializes a single property: key, kind tag, then the value
// encoded per kind
func writeProperty(buf *bytes.Buffer, prop Property) error {
	writeString(buf, prop.Key)
	buf.WriteByte(byte(prop.Value.Kind))
	switch prop.Value.Kind {
	case PropertyInt:
		writeInt64(buf, prop.Value.Int)
	case PropertyString:
		writeString(buf, prop.Value.Str)
	case PropertyBool:
		buf.WriteByte(btoi(prop.Value.Bool))
	default:
		return fmt.Errorf("%w: unsupported property type %d", ErrType, prop.Value.Kind)
	}
	return nil
}

// recordReader walks a record buffer with explicit bounds checks
type recordReader struct {
	data []byte
	pos  int
}

func (r *recordReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *recordReader) readByte(what string) (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: buffer exhausted reading %s", ErrMalformed, what)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *recordReader) readInt64(what string) (int64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("%w: buffer exhausted reading %s", ErrMalformed, what)
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *recordReader) readUint32(what string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: buffer exhausted reading %s", ErrMalformed, what)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *recordReader) readString(what string) (string, error) {
	length, err := r.readUint32(what + " length")
	if err != nil {
		return "", err
	}
	if int64(length) > int64(r.remaining()) {
		return "", fmt.Errorf("%w: %s length %d exceeds remaining buffer %d", ErrMalformed, what, length, r.remaining())
	}
	s := string(r.data[r.pos : r.pos+int(length)])
	r.pos += int(length)
	return s, nil
}

func (r *recordReader) readNodeBody(val *Node) error {
	var err error
	if val.ID, err = r.readInt64("node ID"); err != nil {
		return err
	}
	active, err := r.readByte("node active flag")
	if err != nil {
		return err
	}
	val.Active = active != 0

	labelCount, err := r.readUint32("label count")
	if err != nil {
		return err
	}
	val.Labels = nil
	if labelCount > 0 {
		val.Labels = make([]string, 0, minInt(int(labelCount), r.remaining()))
	}
	for i := uint32(0); i < labelCount; i++ {
		label, err := r.readString("label")
		if err != nil {
			return err
		}
		val.Labels = append(val.Labels, label)
	}

	return r.readProperties(&val.Properties)
}

func (r *recordReader) readEdgeBody(val *Edge) error {
	var err error
	if val.ID, err = r.readInt64("edge ID"); err != nil {
		return err
	}
	active, err := r.readByte("edge active flag")
	if err != nil {
		return err
	}
	val.Active = active != 0

	if val.Type, err = r.readString("edge type"); err != nil {
		return err
	}
	if val.Source, err = r.readInt64("source ID"); err != nil {
		return err
	}
	if val.Target, err = r.readInt64("target ID"); err != nil {
		return err
	}

	return r.readProperties(&val.Properties)
}

func (r *recordReader) readProperties(out *[]Property) error {
	propCount, err := r.readUint32("property count")
	if err != nil {
		return err
	}
	*out = nil
	if propCount > 0 {
		*out = make([]Property, 0, minInt(int(propCount), r.remaining()))
	}
	for i := uint32(0); i < propCount; i++ {
		prop, err := r.readProperty()
		if err != nil {
			return fmt.Errorf("property %d: %w", i, err)
		}
		*out = append(*out, prop)
	}
	return nil
}

func (r *recordReader) readProperty() (Property, error) {
	key, err := r.readString("property key")
	if err != nil {
		return Property{}, err
	}
	kind, err := r.readByte("property type")
	if err != nil {
		return Property{}, err
	}

	var value Value
	switch PropertyType(kind) {
	case PropertyInt:
		v, err := r.readInt64("int value")
		if err != nil {
			return Property{}, err
		}
		value = IntValue(v)
	case PropertyString:
		v, err := r.readString("string value")
		if err != nil {
			return Property{}, err
		}
		value = StringValue(v)
	case PropertyBool:
		v, err := r.readByte("bool value")
		if err != nil {
			return Property{}, err
		}
		value = BoolValue(v != 0)
	default:
		return Property{}, fmt.Errorf("%w: unsupported property type %d", ErrMalformed, kind)
	}
	return Property{Key: key, Value: value}, nil
}

// btoi converts bool to byte (0 or 1)
func btoi(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
