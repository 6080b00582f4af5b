package accel

// Uniforms is the constant storage of a dispatch: named scalar or vector parameters
// shared by every work item. Floating point values are stored as float32 like shader
// constants, integers keep an exact integer slot.
// Uniforms is not safe for concurrent use; Dispatch takes its own copy.
type Uniforms struct {
	values map[string][]float32
	ints   map[string]int
}

// NewUniforms returns an empty constant block.
func NewUniforms() *Uniforms {
	return &Uniforms{values: make(map[string][]float32), ints: make(map[string]int)}
}

// SetFloat sets a scalar parameter.
func (u *Uniforms) SetFloat(name string, v float64) {
	u.SetFloats(name, v)
}

// SetFloats sets a vector parameter from its components.
func (u *Uniforms) SetFloats(name string, vs ...float64) {
	delete(u.ints, name)
	dst := u.values[name][:0]
	for _, v := range vs {
		dst = append(dst, float32(v))
	}
	u.values[name] = dst
}

// SetInt sets an integer parameter.
func (u *Uniforms) SetInt(name string, v int) {
	delete(u.values, name)
	u.ints[name] = v
}

// Float returns the first component of a parameter, 0 when unset.
func (u *Uniforms) Float(name string) float64 {
	return u.Component(name, 0)
}

// Int returns a parameter set with SetInt, 0 when unset. A floating point parameter
// is truncated.
func (u *Uniforms) Int(name string) int {
	if v, ok := u.ints[name]; ok {
		return v
	}
	return int(u.Component(name, 0))
}

// Component returns component i of a parameter, 0 when unset or out of range.
func (u *Uniforms) Component(name string, i int) float64 {
	if v, ok := u.ints[name]; ok && i == 0 {
		return float64(v)
	}
	vs := u.values[name]
	if i < 0 || i >= len(vs) {
		return 0
	}
	return float64(vs[i])
}

// Len returns the number of components of a parameter.
func (u *Uniforms) Len(name string) int {
	if _, ok := u.ints[name]; ok {
		return 1
	}
	return len(u.values[name])
}

// Has reports whether the parameter was set.
func (u *Uniforms) Has(name string) bool {
	_, isFloat := u.values[name]
	_, isInt := u.ints[name]
	return isFloat || isInt
}

// Clone returns a deep copy.
func (u *Uniforms) Clone() *Uniforms {
	c := &Uniforms{
		values: make(map[string][]float32, len(u.values)),
		ints:   make(map[string]int, len(u.ints)),
	}
	for k, v := range u.values {
		c.values[k] = append([]float32(nil), v...)
	}
	for k, v := range u.ints {
		c.ints[k] = v
	}
	return c
}
