package series

import "math"

// Value is a float cell for fixed-schema CSV rows. NaN is written as an empty
// cell and an empty cell reads back as NaN.
type Value float64

// Missing is the NaN Value.
func Missing() Value { return Value(math.NaN()) }

// IsMissing reports whether the value is NaN.
func (v Value) IsMissing() bool { return math.IsNaN(float64(v)) }

// Float returns the value as float64.
func (v Value) Float() float64 { return float64(v) }

// MarshalCSV implements gocsv.TypeMarshaller.
func (v Value) MarshalCSV() (string, error) {
	return FormatValue(float64(v)), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (v *Value) UnmarshalCSV(s string) error {
	f, err := ParseValue(s)
	if err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// MarshalJSON writes missing values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsMissing() || math.IsInf(float64(v), 0) {
		return []byte("null"), nil
	}
	return []byte(FormatValue(float64(v))), nil
}
