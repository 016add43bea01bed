package core

// IntFromAny converts a numeric value (float64, int, or int64) to int, returning 0 for unsupported types.
func IntFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

// FloatFromAny converts a numeric value to float64, returning 0 for unsupported types.
func FloatFromAny(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
