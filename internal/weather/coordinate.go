package weather

import (
	"bytes"
	"encoding/json"
	"math"
)

// Coordinate is a latitude or longitude that may be missing or non-numeric.
// Decoding never fails: anything that is not a finite JSON number yields an
// invalid Coordinate, so one bad entry cannot reject a whole list.
type Coordinate struct {
	value float64
	valid bool
}

// Coord returns a Coordinate holding v. NaN and infinities are invalid.
func Coord(v float64) Coordinate {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Coordinate{}
	}
	return Coordinate{value: v, valid: true}
}

// Float returns the value and whether it is usable.
func (c Coordinate) Float() (float64, bool) {
	return c.value, c.valid
}

// Valid reports whether the coordinate holds a finite number.
func (c Coordinate) Valid() bool { return c.valid }

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.value)
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	*c = Coordinate{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '"' || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*c = Coord(v)
	return nil
}
