package clapikeys

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// StringSet est un ensemble ordonné de chaînes, stocké en liste JSON.
// La lecture accepte aussi l'ancienne forme séparée par des virgules.
type StringSet []string

// ParseStringSet lit une liste JSON ou une liste séparée par des virgules
func ParseStringSet(raw string) (StringSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return StringSet{}, nil
	}
	if strings.HasPrefix(raw, "[") {
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("liste invalide: %w", err)
		}
		return NewStringSet(items...), nil
	}
	return NewStringSet(strings.Split(raw, ",")...), nil
}

// NewStringSet supprime les blancs, les valeurs vides et les doublons
func NewStringSet(items ...string) StringSet {
	set := make(StringSet, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || slices.Contains(set, item) {
			continue
		}
		set = append(set, item)
	}
	return set
}

func (s StringSet) Contains(value string) bool {
	return slices.Contains(s, value)
}

func (s StringSet) Value() (driver.Value, error) {
	data, err := json.Marshal(NewStringSet(s...))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *StringSet) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*s = StringSet{}
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("type %T non supporté pour StringSet", value)
	}

	parsed, err := ParseStringSet(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		parsed, err := ParseStringSet(str)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("liste de chaînes attendue")
	}
	*s = NewStringSet(items...)
	return nil
}

func (StringSet) GormDataType() string {
	return "text"
}

// Metadata est un objet JSON libre associé à une clé
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *Metadata) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("type %T non supporté pour Metadata", value)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		*m = Metadata{}
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

func (Metadata) GormDataType() string {
	return "text"
}
