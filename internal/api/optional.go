package api

import "encoding/json"

// optional 区分字段缺省与显式 null，用于可清空的列。
type optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON 只在字段出现时被调用，包括值为 null 的情况。
func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// column returns the value to write, nil meaning SQL NULL.
func (o optional[T]) column() any {
	if o.Value == nil {
		return nil
	}
	return *o.Value
}

// merge returns the incoming value when the field was provided, current otherwise.
func (o optional[T]) merge(current *T) *T {
	if o.Set {
		return o.Value
	}
	return current
}
