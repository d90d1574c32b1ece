package models

import "fmt"

// Severity 严重程度（有序，可直接比较大小）
type Severity int

const (
	// SeverityNone 空结果的哨兵值，不是合法的报警级别
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{
	SeverityNone:     "none",
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if s < SeverityNone || s > SeverityCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity 解析字符串
func ParseSeverity(v string) (Severity, error) {
	for i, name := range severityNames {
		if name == v {
			return Severity(i), nil
		}
	}
	return SeverityNone, fmt.Errorf("unknown severity: %q", v)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
