package product

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Options are the variant choices (size, color, ...) picked for a product.
// Stored as a JSONB object.
type Options map[string]string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o)
}

func (o *Options) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = Options{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("product.Options: unsupported scan type %T", src)
	}
	out := Options{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*o = out
	return nil
}
