package model

// ParamMap holds one of the three configuration mappings of a bundle
// (boundary conditions, system parameters or computational methods).
// Values are free-form; the typed accessors absorb the numeric widening
// that happens when a map round-trips through the wire codec.
type ParamMap map[string]any

// Int returns the value under key coerced to int.
func (p ParamMap) Int(key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	}
	return 0, false
}

// Float returns the value under key coerced to float64.
func (p ParamMap) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		if i, ok := p.Int(key); ok {
			return float64(i), true
		}
	}
	return 0, false
}

// Bool returns the value under key if it is a bool.
func (p ParamMap) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Clone returns a shallow copy of the map.
func (p ParamMap) Clone() ParamMap {
	if p == nil {
		return nil
	}
	out := make(ParamMap, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
