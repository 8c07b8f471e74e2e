package model

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// Wide is an unsigned fixed-width integer wider than a token amount. It is
// encoded as a decimal string so JSON and SQL numeric columns can carry it.
type Wide struct {
	v uint256.Int
}

// WideFrom copies x into a Wide. A nil x yields zero.
func WideFrom(x *uint256.Int) Wide {
	var w Wide
	if x != nil {
		w.v.Set(x)
	}
	return w
}

// ParseWide parses a base-10 string.
func ParseWide(s string) (Wide, error) {
	var w Wide
	if s == "" {
		return w, nil
	}
	if err := w.v.SetFromDecimal(s); err != nil {
		return Wide{}, fmt.Errorf("parse wide %q: %w", s, err)
	}
	return w, nil
}

// Int returns a copy of the value.
func (w Wide) Int() *uint256.Int {
	return new(uint256.Int).Set(&w.v)
}

func (w Wide) IsZero() bool {
	return w.v.IsZero()
}

func (w Wide) Cmp(other Wide) int {
	return w.v.Cmp(&other.v)
}

func (w Wide) String() string {
	return w.v.Dec()
}

func (w Wide) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.v.Dec())
}

func (w *Wide) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("wide must be a decimal string: %w", err)
	}
	parsed, err := ParseWide(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
