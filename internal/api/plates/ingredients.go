package plates

import (
	"encoding/json"
	"strings"

	"github.com/Eyemetric/plates_service/internal/api/apperror"
)

// ParseIngredients decodes the JSON string array sent with a plate form.
// An empty payload is an empty list.
func ParseIngredients(raw string) ([]string, error) {
	names := []string{}
	if strings.TrimSpace(raw) == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, apperror.Validation("Invalid ingredients list", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// SplitCSV splits a comma separated filter, trimming tokens and dropping empty ones.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
