package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue encodes nested documents stored in JSONB columns.
func jsonValue(v interface{}) (driver.Value, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func scanJSON(src interface{}, dest interface{}) error {
	switch value := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(value) == 0 {
			return nil
		}
		return json.Unmarshal(value, dest)
	case string:
		if value == "" {
			return nil
		}
		return json.Unmarshal([]byte(value), dest)
	default:
		return fmt.Errorf("unsupported JSONB source %T", src)
	}
}
