// Package exchange moves values between host code and the interpreter stack.
//
// Every value crossing the boundary goes through this package: host values
// are converted and pushed, interpreter values are read positionally and
// converted back. Callers use Mark/Reset to keep the stack balanced.
package exchange

import (
	"fmt"
	"math"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
	lua "github.com/yuin/gopher-lua"
)

// MaxDepth bounds table conversion in both directions.
// Deeper or cyclic tables convert to an opaque value.
const MaxDepth = 32

// Mark returns the current stack depth.
func Mark(L *lua.LState) int {
	return L.GetTop()
}

// Reset drops everything above mark.
func Reset(L *lua.LState, mark int) {
	if L.GetTop() > mark {
		L.SetTop(mark)
	}
}

// Push converts v and pushes it onto the stack.
func Push(L *lua.LState, v entities.Value) error {
	lv, err := ToLua(L, v)
	if err != nil {
		return err
	}
	L.Push(lv)
	return nil
}

// PushAll pushes values in order, so the last one ends nearest the top.
// On error nothing stays pushed.
func PushAll(L *lua.LState, values []entities.Value) error {
	mark := Mark(L)
	for i, v := range values {
		if err := Push(L, v); err != nil {
			Reset(L, mark)
			if ve, ok := err.(*domainerrors.ValueError); ok && ve.Position == 0 {
				ve.Position = i + 1
			}
			return err
		}
	}
	return nil
}

// Pull reads n values starting at the absolute stack index from.
// Missing slots read as nil.
func Pull(L *lua.LState, from, n int) []entities.Value {
	out := make([]entities.Value, n)
	for i := 0; i < n; i++ {
		out[i] = FromLua(L.Get(from + i))
	}
	return out
}

// ToLua converts a host value into an interpreter value.
func ToLua(L *lua.LState, v entities.Value) (lua.LValue, error) {
	return toLua(L, v, 0)
}

func toLua(L *lua.LState, v entities.Value, depth int) (lua.LValue, error) {
	switch v.Kind() {
	case entities.KindNil:
		return lua.LNil, nil
	case entities.KindBool:
		b, _ := v.AsBool()
		return lua.LBool(b), nil
	case entities.KindNumber:
		n, _ := v.AsNumber()
		return lua.LNumber(n), nil
	case entities.KindString:
		s, _ := v.AsString()
		return lua.LString(s), nil
	case entities.KindTable:
		if depth >= MaxDepth {
			return nil, &domainerrors.ValueError{
				Expected: "table",
				Got:      "table",
				Err:      fmt.Errorf("nesting deeper than %d", MaxDepth),
			}
		}
		elems := v.Elems()
		fields := v.Fields()
		tbl := L.CreateTable(len(elems), len(fields))
		for i, e := range elems {
			lv, err := toLua(L, e, depth+1)
			if err != nil {
				return nil, err
			}
			tbl.RawSetInt(i+1, lv)
		}
		for k, f := range fields {
			lv, err := toLua(L, f, depth+1)
			if err != nil {
				return nil, err
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	}
	return nil, &domainerrors.ValueError{Expected: "writable value", Got: v.Kind().String()}
}

// FromLua converts an interpreter value into a host value.
func FromLua(lv lua.LValue) entities.Value {
	return fromLua(lv, 0)
}

func fromLua(lv lua.LValue, depth int) entities.Value {
	switch lv.Type() {
	case lua.LTNil:
		return entities.Nil()
	case lua.LTBool:
		return entities.Bool(lua.LVAsBool(lv))
	case lua.LTNumber:
		return entities.Number(float64(lv.(lua.LNumber)))
	case lua.LTString:
		return entities.String(string(lv.(lua.LString)))
	case lua.LTFunction:
		return entities.Opaque(entities.KindFunction, lv.String())
	case lua.LTTable:
		if depth >= MaxDepth {
			return entities.Opaque(entities.KindOther, lv.String())
		}
		return fromTable(lv.(*lua.LTable), depth)
	}
	return entities.Opaque(entities.KindOther, lv.String())
}

// fromTable splits a table into its sequence (1..n, n being the table length) and its
// remaining keys. Non-string keys outside the sequence are rendered with
// their number formatting so nothing is silently dropped.
func fromTable(tbl *lua.LTable, depth int) entities.Value {
	n := tbl.Len()
	var elems []entities.Value
	if n > 0 {
		elems = make([]entities.Value, 0, n)
		for i := 1; i <= n; i++ {
			elems = append(elems, fromLua(tbl.RawGetInt(i), depth+1))
		}
	}

	var fields map[string]entities.Value
	tbl.ForEach(func(k, v lua.LValue) {
		if num, ok := k.(lua.LNumber); ok {
			f := float64(num)
			if f == math.Trunc(f) && f >= 1 && f <= float64(n) {
				return
			}
		}
		if fields == nil {
			fields = make(map[string]entities.Value)
		}
		var key string
		switch kt := k.(type) {
		case lua.LString:
			key = string(kt)
		case lua.LNumber:
			key = entities.FormatNumber(float64(kt))
		default:
			key = k.String()
		}
		fields[key] = fromLua(v, depth+1)
	})
	return entities.Table(elems, fields)
}
