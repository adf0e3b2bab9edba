package generator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a backend response is not a JSON
// object or its code field is not a string.
var ErrMalformedResponse = errors.New("malformed generation response")

// ExtractCode reads the code payload of a response envelope. An absent,
// null or blank code field yields an empty string and no error. Keys other
// than code are ignored.
func ExtractCode(response string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &fields); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields == nil {
		return "", fmt.Errorf("%w: response is not a JSON object", ErrMalformedResponse)
	}

	raw, ok := fields["code"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", nil
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return "", fmt.Errorf("%w: field 'code' is not a string", ErrMalformedResponse)
	}
	return strings.TrimSpace(code), nil
}
