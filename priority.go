package priosched

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority is the scheduling priority of a thread. Larger values run first.
type Priority int

const (
	PriMin     Priority = 0
	PriDefault Priority = 31
	PriMax     Priority = 63
)

var (
	strPriorityMap = map[Priority]string{
		PriMin:     "min",
		PriDefault: "default",
		PriMax:     "max",
	}

	typePriorityMap = map[string]Priority{
		"min":     PriMin,
		"default": PriDefault,
		"max":     PriMax,
	}
)

// ParsePriority creates a new [Priority] from the given value. Names ("min",
// "default", "max"), decimal strings, integers and [fmt.Stringer] values are
// accepted. Out of range values are clamped; anything else yields
// [PriDefault].
func ParsePriority(p any) Priority {
	switch v := p.(type) {
	case Priority:
		return v.Clamp()
	case string:
		return stringToPriority(v)
	case fmt.Stringer:
		return stringToPriority(v.String())
	case int:
		return Priority(v).Clamp()
	case int64:
		return clampInt64(v)
	case int32:
		return Priority(v).Clamp()
	default:
		return PriDefault
	}
}

// Clamp bounds p to the range [PriMin, PriMax].
func (p Priority) Clamp() Priority {
	return max(PriMin, min(p, PriMax))
}

// IsValid reports whether p lies within [PriMin, PriMax].
func (p Priority) IsValid() bool {
	return p >= PriMin && p <= PriMax
}

func (p Priority) String() string {
	if s, ok := strPriorityMap[p]; ok {
		return s
	}
	return strconv.Itoa(int(p))
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	*p = ParsePriority(s)
	return nil
}

func stringToPriority(s string) Priority {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := typePriorityMap[s]; ok {
		return v
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return clampInt64(n)
	}
	return PriDefault
}

func clampInt64(n int64) Priority {
	switch {
	case n < int64(PriMin):
		return PriMin
	case n > int64(PriMax):
		return PriMax
	default:
		return Priority(n)
	}
}
