package resources

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCPU converts human-readable CPU strings to millicores.
// Supported formats: "0.5" (cores), "500m" (millicores), "2" (2 cores).
func ParseCPU(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("resources: empty CPU string")
	}

	if strings.HasSuffix(s, "m") {
		val, err := strconv.ParseFloat(strings.TrimSuffix(s, "m"), 64)
		if err != nil {
			return 0, fmt.Errorf("resources: parse CPU %q: %w", s, err)
		}
		if val < 0 {
			return 0, fmt.Errorf("resources: CPU must be non-negative: %q", s)
		}
		return int64(val), nil
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("resources: parse CPU %q: %w", s, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("resources: CPU must be non-negative: %q", s)
	}
	return int64(val * 1000), nil
}

// ParseQuantity converts human-readable memory/storage strings to bytes.
// Binary suffixes Ki/Mi/Gi/Ti use powers of 1024, decimal suffixes
// K/M/G/T use powers of 1000. Without a suffix the value is bytes.
func ParseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("resources: empty quantity string")
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "ti"):
		multiplier = 1 << 40
		s = strings.TrimSuffix(s, "ti")
	case strings.HasSuffix(s, "gi"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "gi")
	case strings.HasSuffix(s, "mi"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "mi")
	case strings.HasSuffix(s, "ki"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "ki")
	case strings.HasSuffix(s, "t"):
		multiplier = 1_000_000_000_000
		s = strings.TrimSuffix(s, "t")
	case strings.HasSuffix(s, "g"):
		multiplier = 1_000_000_000
		s = strings.TrimSuffix(s, "g")
	case strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("resources: parse quantity %q: %w", s, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("resources: quantity must be non-negative: %q", s)
	}
	return int64(val * float64(multiplier)), nil
}

// FormatQuantity converts bytes to a human-readable binary string.
func FormatQuantity(bytes int64) string {
	switch {
	case bytes >= 1<<40 && bytes%(1<<40) == 0:
		return fmt.Sprintf("%dTi", bytes>>40)
	case bytes >= 1<<30 && bytes%(1<<30) == 0:
		return fmt.Sprintf("%dGi", bytes>>30)
	case bytes >= 1<<20 && bytes%(1<<20) == 0:
		return fmt.Sprintf("%dMi", bytes>>20)
	case bytes >= 1<<10 && bytes%(1<<10) == 0:
		return fmt.Sprintf("%dKi", bytes>>10)
	default:
		return strconv.FormatInt(bytes, 10)
	}
}

// FormatCPU converts millicores to a human-readable string.
func FormatCPU(millicores int64) string {
	if millicores%1000 == 0 {
		return strconv.FormatInt(millicores/1000, 10)
	}
	return fmt.Sprintf("%dm", millicores)
}
