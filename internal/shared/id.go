package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID identifies a record. The backend issues both numeric and string ids, so
// ID accepts either form on the wire and always marshals as a string.
type ID string

// TempPrefix marks ids minted on this device for records the server has not
// confirmed yet.
const TempPrefix = "temp_"

func (id ID) String() string { return string(id) }

// IsTemp reports whether the id was minted locally while signed in.
func (id ID) IsTemp() bool { return strings.HasPrefix(string(id), TempPrefix) }

// HasLocalPrefix reports whether the id is temporary or was minted with the
// given guest prefix (e.g. "guest-1712345678901").
func (id ID) HasLocalPrefix(prefix string) bool {
	if id.IsTemp() {
		return true
	}
	return prefix != "" && strings.HasPrefix(string(id), prefix+"-")
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}
