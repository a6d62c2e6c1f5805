package playbooks

import "reflect"

// Derive returns a deep copy of the playbook with fn applied. The receiver is left untouched.
func (s *Spec) Derive(fn func(*Spec)) *Spec {
	ret := deepCopy(reflect.ValueOf(s)).Interface().(*Spec)
	if fn != nil {
		fn(ret)
	}
	return ret
}

func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {

	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		ret := reflect.New(v.Type().Elem())
		ret.Elem().Set(deepCopy(v.Elem()))
		return ret

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		ret := reflect.New(v.Type()).Elem()
		ret.Set(deepCopy(v.Elem()))
		return ret

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		ret := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			ret.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return ret

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		ret := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			ret.Index(i).Set(deepCopy(v.Index(i)))
		}
		return ret

	case reflect.Struct:
		ret := reflect.New(v.Type()).Elem()
		for i := range v.NumField() {
			if !ret.Field(i).CanSet() {
				continue
			}
			ret.Field(i).Set(deepCopy(v.Field(i)))
		}
		return ret

	}
	return v
}
