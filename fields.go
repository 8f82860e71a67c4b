package jpdata

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Fields holds every attribute of a source record exactly as it was decoded.
// Numbers decoded by the json package keep their literal form, so writing
// Fields back out reproduces the source values.
type Fields map[string]interface{}

// number is satisfied by json.Number from both the standard library and
// go-json.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// Copy returns a shallow copy of f.
func (f Fields) Copy() Fields {
	if f == nil {
		return nil
	}
	ret := make(Fields, len(f))
	for k, v := range f {
		ret[k] = v
	}
	return ret
}

// Str returns the value at key as a string, or "" if it is missing or null.
// Numbers are rendered in their literal form.
func (f Fields) Str(key string) string {
	s, _ := toString(f[key])
	return s
}

// Int returns the value at key as an integer, or nil if it is missing, null,
// or not an integer.
func (f Fields) Int(key string) *int64 {
	v, err := toInt64(f[key])
	if err != nil || v == nil {
		return nil
	}
	return v
}

// Float returns the value at key as a float, or nil if it is missing, null,
// or not numeric.
func (f Fields) Float(key string) *float64 {
	v, err := toFloat64(f[key])
	if err != nil || v == nil {
		return nil
	}
	return v
}

// Flag returns the value at key as a boolean. The API encodes flags as "Y"
// and "N"; booleans and 0/1 are also accepted. Anything else is nil.
func (f Fields) Flag(key string) *bool {
	v, err := toFlag(f[key])
	if err != nil || v == nil {
		return nil
	}
	return v
}

func toString(val interface{}) (string, error) {
	switch vt := val.(type) {
	case nil:
		return "", nil
	case string:
		return vt, nil
	case []byte:
		return string(vt), nil
	case number:
		return vt.String(), nil
	case float64:
		return strconv.FormatFloat(vt, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(vt), nil
	case int64:
		return strconv.FormatInt(vt, 10), nil
	case bool:
		return strconv.FormatBool(vt), nil
	default:
		return "", errors.Errorf("couldn't convert %v of %[1]T to string", vt)
	}
}

func toInt64(val interface{}) (*int64, error) {
	var ret int64
	switch vt := val.(type) {
	case nil:
		return nil, nil
	case int:
		ret = int64(vt)
	case int32:
		ret = int64(vt)
	case int64:
		ret = vt
	case uint32:
		ret = int64(vt)
	case float64:
		if vt != math.Trunc(vt) {
			return nil, errors.Errorf("%v is not an integer", vt)
		}
		ret = int64(vt)
	case number:
		i, err := vt.Int64()
		if err != nil {
			f, ferr := vt.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return nil, errors.Wrapf(err, "%v is not an integer", vt)
			}
			i = int64(f)
		}
		ret = i
	case string:
		s := strings.TrimSpace(vt)
		if s == "" {
			return nil, nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q", vt)
		}
		ret = i
	default:
		return nil, errors.Errorf("couldn't convert %v of %[1]T to int64", vt)
	}
	return &ret, nil
}

func toFloat64(val interface{}) (*float64, error) {
	var ret float64
	switch vt := val.(type) {
	case nil:
		return nil, nil
	case float64:
		ret = vt
	case float32:
		ret = float64(vt)
	case int:
		ret = float64(vt)
	case int64:
		ret = float64(vt)
	case number:
		f, err := vt.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "%v is not a number", vt)
		}
		ret = f
	case string:
		s := strings.TrimSpace(vt)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q", vt)
		}
		ret = f
	default:
		return nil, errors.Errorf("couldn't convert %v of %[1]T to float64", vt)
	}
	return &ret, nil
}

func toFlag(val interface{}) (*bool, error) {
	var ret bool
	switch vt := val.(type) {
	case nil:
		return nil, nil
	case bool:
		ret = vt
	case string:
		switch strings.ToUpper(strings.TrimSpace(vt)) {
		case "Y", "YES", "TRUE", "1":
			ret = true
		case "N", "NO", "FALSE", "0":
			ret = false
		case "":
			return nil, nil
		default:
			return nil, errors.Errorf("unrecognized flag value %q", vt)
		}
	default:
		i, err := toInt64(val)
		if err != nil {
			return nil, errors.Wrap(err, "converting flag")
		}
		switch *i {
		case 0:
			ret = false
		case 1:
			ret = true
		default:
			return nil, errors.Errorf("unrecognized flag value %d", *i)
		}
	}
	return &ret, nil
}
