package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
)

// Wei is a non-negative amount stored as NUMERIC.
type Wei struct {
	big.Int
}

func NewWei(v *big.Int) Wei {
	var w Wei
	if v != nil {
		w.Set(v)
	}
	return w
}

func (w Wei) BigInt() *big.Int {
	return new(big.Int).Set(&w.Int)
}

func (w Wei) Value() (driver.Value, error) {
	return w.String(), nil
}

func (w *Wei) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		w.SetInt64(0)
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		w.SetInt64(v)
		return nil
	default:
		return fmt.Errorf("can't scan %T into wei", src)
	}
	if _, ok := w.SetString(s, 10); !ok {
		return fmt.Errorf("can't parse wei value %q", s)
	}
	return nil
}

func (w Wei) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *Wei) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, ok := w.SetString(s, 10); !ok {
		return fmt.Errorf("can't parse wei value %q", s)
	}
	return nil
}
