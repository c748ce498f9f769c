package notice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// DecodeError reports a payload that could not be decoded.
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding payload %q: %v", e.Payload, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode turns a stored payload into display text. Quoted payloads are JSON
// strings; payloads containing \uXXXX escapes are unescaped; anything else is
// returned as is.
func Decode(payload string) (string, error) {
	if payload == "" {
		return "", nil
	}

	if len(payload) >= 2 && strings.HasPrefix(payload, `"`) && strings.HasSuffix(payload, `"`) {
		var s string
		if err := json.Unmarshal([]byte(payload), &s); err != nil {
			return "", &DecodeError{Payload: payload, Err: err}
		}
		return s, nil
	}

	if strings.Contains(payload, `\u`) {
		s, err := unescapeUnicode(payload)
		if err != nil {
			return "", &DecodeError{Payload: payload, Err: err}
		}
		return s, nil
	}

	return payload, nil
}

// unescapeUnicode replaces \uXXXX sequences, joining surrogate pairs. Other
// backslash sequences are left for a later JSON parse.
func unescapeUnicode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		if s[i+1] != 'u' {
			b.WriteString(s[i : i+2])
			i += 2
			continue
		}

		r, err := hexRune(s, i)
		if err != nil {
			return "", err
		}
		i += 6

		if utf16.IsSurrogate(r) {
			low, err := hexRune(s, i)
			if err != nil {
				return "", fmt.Errorf("unpaired surrogate at offset %d", i-6)
			}
			r = utf16.DecodeRune(r, low)
			i += 6
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func hexRune(s string, i int) (rune, error) {
	if i+6 > len(s) || s[i] != '\\' || s[i+1] != 'u' {
		return 0, fmt.Errorf("truncated escape at offset %d", i)
	}
	v, err := strconv.ParseUint(s[i+2:i+6], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid escape %q", s[i:i+6])
	}
	return rune(v), nil
}

// ChallengeName extracts a challenge title from a decoded payload. Values
// wrapped in brackets are read as JSON arrays and their first element used.
func ChallengeName(decoded string) string {
	if strings.HasPrefix(decoded, "[") && strings.HasSuffix(decoded, "]") {
		var values []any
		if err := json.Unmarshal([]byte(decoded), &values); err == nil && len(values) > 0 {
			return display(values[0])
		}
	}
	return decoded
}

// bloodValues reads a decoded blood payload as [team, challenge].
func bloodValues(decoded string) (team, challenge string, ok bool) {
	var values []any
	if err := json.Unmarshal([]byte(decoded), &values); err != nil || len(values) < 2 {
		return "", "", false
	}
	return display(values[0]), display(values[1]), true
}

func display(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
