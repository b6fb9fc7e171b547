package entity

import (
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// MeasurePlaces is the number of decimal places a Measure is stored with.
const MeasurePlaces = 3

// Measure is an exact decimal quantity such as a height in cm or a
// weight in kg. It is stored as a number with MeasurePlaces places and
// never passes through float64. Values with more places are rejected
// rather than rounded.
type Measure struct {
	decimal.Decimal
}

// ParseMeasure parses a decimal string such as "72.5".
func ParseMeasure(s string) (Measure, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Measure{}, fmt.Errorf("%w: parse measure %q: %v", store.ErrInvalidArgument, s, err)
	}
	m := Measure{d}
	if err := m.checkPlaces(); err != nil {
		return Measure{}, err
	}
	return m, nil
}

// checkPlaces fails when storing m would change its value.
func (m Measure) checkPlaces() error {
	if !m.Equal(m.Round(MeasurePlaces)) {
		return fmt.Errorf("%w: measure %s has more than %d decimal places", store.ErrInvalidArgument, m.Decimal, MeasurePlaces)
	}
	return nil
}

func MustMeasure(s string) Measure {
	m, err := ParseMeasure(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Measure) String() string {
	return m.StringFixed(MeasurePlaces)
}

func (m Measure) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.String()}, nil
}

func (m *Measure) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		*m = Measure{}
		return nil
	default:
		return fmt.Errorf("measure: unexpected attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("measure: %w", err)
	}
	m.Decimal = d.Round(MeasurePlaces)
	return nil
}

func (m Measure) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Measure) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	if err := (Measure{d}).checkPlaces(); err != nil {
		return err
	}
	m.Decimal = d
	return nil
}
