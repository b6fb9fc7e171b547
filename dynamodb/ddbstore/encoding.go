package ddbstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"strconv"

	"github.com/acksell/pairent/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key encoding for BadgerDB that preserves DynamoDB ordering.
//
// Base table: [table][0x00][partitionKey][0x00][sortKey]
// GSI:        [table][$gsi:][gsiName][0x00][gsiPartition][0x00][gsiSort][0x00][partitionKey][0x00][sortKey]
//
// GSI entries carry the base table key so that items sharing index key
// values stay distinct and pages can resume between them.

const (
	keySeparator byte = 0x00
	gsiMarker         = "$gsi:"
)

const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

// indexEncoder encodes item keys for the base table or one GSI.
type indexEncoder struct {
	name   string
	prefix []byte
	keys   table.PrimaryKeyDefinition
	// base is set for GSIs only.
	base *table.PrimaryKeyDefinition
}

func newTableEncoder(def table.TableDefinition) *indexEncoder {
	var buf bytes.Buffer
	buf.WriteString(def.Name)
	buf.WriteByte(keySeparator)
	return &indexEncoder{prefix: buf.Bytes(), keys: def.KeyDefinitions}
}

func newGSIEncoder(def table.TableDefinition, gsi table.GSIDefinition) *indexEncoder {
	var buf bytes.Buffer
	buf.WriteString(def.Name)
	buf.WriteString(gsiMarker)
	buf.WriteString(gsi.Name)
	buf.WriteByte(keySeparator)
	base := def.KeyDefinitions
	return &indexEncoder{name: gsi.Name, prefix: buf.Bytes(), keys: gsi.KeyDefinitions, base: &base}
}

// encodeItem returns the badger key of an item. ok is false when the item
// lacks the index key attributes and so does not belong to a sparse GSI.
func (e *indexEncoder) encodeItem(item map[string]types.AttributeValue) (key []byte, ok bool, err error) {
	if item == nil {
		return nil, false, nil
	}
	pk, err := e.keys.ExtractPrimaryKey(item)
	if err != nil {
		if e.base != nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	buf := bytes.NewBuffer(append([]byte(nil), e.prefix...))
	if err := writeKey(buf, pk); err != nil {
		return nil, false, err
	}
	if e.base != nil {
		basePK, err := e.base.ExtractPrimaryKey(item)
		if err != nil {
			return nil, false, err
		}
		buf.WriteByte(keySeparator)
		if err := writeKey(buf, basePK); err != nil {
			return nil, false, err
		}
	}
	return buf.Bytes(), true, nil
}

// partitionPrefix returns a prefix covering every entry of one partition.
func (e *indexEncoder) partitionPrefix(partition string) ([]byte, error) {
	buf := bytes.NewBuffer(append([]byte(nil), e.prefix...))
	enc, err := encodeKeyValue(partition, e.keys.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(enc)
	buf.WriteByte(keySeparator)
	return buf.Bytes(), nil
}

// cursorAttributes copies the attributes that identify an entry's position.
func (e *indexEncoder) cursorAttributes(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, 4)
	names := []string{e.keys.PartitionKey.Name, e.keys.SortKey.Name}
	if e.base != nil {
		names = append(names, e.base.PartitionKey.Name, e.base.SortKey.Name)
	}
	for _, n := range names {
		if v, ok := item[n]; ok && n != "" {
			out[n] = v
		}
	}
	return out
}

func writeKey(buf *bytes.Buffer, pk table.PrimaryKey) error {
	enc, err := encodeKeyValue(pk.Values.PartitionKey, pk.Definition.PartitionKey.Kind)
	if err != nil {
		return fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(enc)
	buf.WriteByte(keySeparator)
	if pk.Definition.SortKey.Name != "" {
		enc, err := encodeKeyValue(pk.Values.SortKey, pk.Definition.SortKey.Kind)
		if err != nil {
			return fmt.Errorf("encode sort key: %w", err)
		}
		buf.Write(enc)
	}
	return nil
}

// encodeKeyValue encodes a wire-form key value so that byte order matches
// DynamoDB's ordering for the kind.
func encodeKeyValue(value string, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case table.KeyKindS:
		buf.WriteByte(keyTypeString)
		buf.Write(escapeBytes([]byte(value)))
	case table.KeyKindN:
		buf.WriteByte(keyTypeNumber)
		encoded, err := encodeNumber(value)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	case table.KeyKindB:
		buf.WriteByte(keyTypeBinary)
		buf.Write(escapeBytes([]byte(value)))
	default:
		return nil, fmt.Errorf("unsupported key kind: %s", kind)
	}
	return buf.Bytes(), nil
}

// encodeNumber encodes a number string for lexicographic ordering.
// Positive numbers: 0x80 + big-endian float64 with the sign bit flipped.
// Negative numbers: 0x7F + inverted big-endian float64.
func encodeNumber(numStr string) ([]byte, error) {
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", numStr, err)
	}

	bits := math.Float64bits(f)
	buf := make([]byte, 9)

	if f >= 0 {
		buf[0] = 0x80
		bits ^= (1 << 63)
	} else {
		buf[0] = 0x7F
		bits = ^bits
	}

	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf, nil
}

// escapeBytes keeps 0x00 free for separators.
// 0x00 becomes 0x01 0x01 and 0x01 becomes 0x01 0x02, which preserves order.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.WriteByte(0x01)
			buf.WriteByte(0x01)
		case 0x01:
			buf.WriteByte(0x01)
			buf.WriteByte(0x02)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// serializeItem gob-encodes an item for storage as a badger value.
func serializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	serializable := make(map[string]storedAV, len(item))
	for k, v := range item {
		sav, err := toStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		serializable[k] = sav
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(serializable); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

func deserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var serializable map[string]storedAV
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&serializable); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	result := make(map[string]types.AttributeValue, len(serializable))
	for k, v := range serializable {
		av, err := fromStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		result[k] = av
	}
	return result, nil
}

// storedAV is the gob-encodable form of an AttributeValue.
type storedAV struct {
	Type  string
	Value any
}

func init() {
	gob.Register(map[string]storedAV{})
	gob.Register([]storedAV{})
	gob.Register([]string{})
	gob.Register([][]byte{})
}

func toStored(av types.AttributeValue) (storedAV, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return storedAV{Type: "S", Value: v.Value}, nil
	case *types.AttributeValueMemberN:
		return storedAV{Type: "N", Value: v.Value}, nil
	case *types.AttributeValueMemberB:
		return storedAV{Type: "B", Value: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return storedAV{Type: "BOOL", Value: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return storedAV{Type: "NULL", Value: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return storedAV{Type: "SS", Value: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return storedAV{Type: "NS", Value: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return storedAV{Type: "BS", Value: v.Value}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]storedAV, len(v.Value))
		for k, val := range v.Value {
			sav, err := toStored(val)
			if err != nil {
				return storedAV{}, err
			}
			m[k] = sav
		}
		return storedAV{Type: "M", Value: m}, nil
	case *types.AttributeValueMemberL:
		l := make([]storedAV, len(v.Value))
		for i, val := range v.Value {
			sav, err := toStored(val)
			if err != nil {
				return storedAV{}, err
			}
			l[i] = sav
		}
		return storedAV{Type: "L", Value: l}, nil
	default:
		return storedAV{}, fmt.Errorf("unsupported attribute value type: %T", av)
	}
}

func fromStored(sav storedAV) (types.AttributeValue, error) {
	switch sav.Type {
	case "S":
		return &types.AttributeValueMemberS{Value: sav.Value.(string)}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sav.Value.(string)}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sav.Value.([]byte)}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sav.Value.(bool)}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sav.Value.(bool)}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sav.Value.([]string)}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sav.Value.([]string)}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sav.Value.([][]byte)}, nil
	case "M":
		m := make(map[string]types.AttributeValue)
		for k, v := range sav.Value.(map[string]storedAV) {
			av, err := fromStored(v)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "L":
		src := sav.Value.([]storedAV)
		l := make([]types.AttributeValue, len(src))
		for i, v := range src {
			av, err := fromStored(v)
			if err != nil {
				return nil, err
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return nil, fmt.Errorf("unsupported stored type: %s", sav.Type)
	}
}
