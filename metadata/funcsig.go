package metadata

import (
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/typehash"
	"github.com/packrun/pack/value"
)

func (f FuncSig) toValue() value.Value {
	params := make([]value.Value, len(f.Params))
	for i, p := range f.Params {
		params[i] = value.Record("param-desc",
			value.Field{Name: "name", Value: value.Str(p.Name)},
			value.Field{Name: "type", Value: p.Type.toValue()},
		)
	}
	results := make([]value.Value, len(f.Results))
	for i, r := range f.Results {
		results[i] = r.toValue()
	}
	return value.Record("func-sig",
		value.Field{Name: "interface", Value: value.Str(f.Interface)},
		value.Field{Name: "name", Value: value.Str(f.Name)},
		value.Field{Name: "params", Value: value.List(value.TRecord("param-desc"), params)},
		value.Field{Name: "results", Value: value.List(value.TVariant("type-desc"), results)},
	)
}

func funcSigFromValue(v value.Value) (FuncSig, error) {
	if v.Kind != value.KindRecord || v.Name != "func-sig" {
		return FuncSig{}, errors.CodecTypeMismatch("func-sig record", v.Kind.String())
	}
	f := fieldMap(v)
	paramItems := f["params"].Items
	params := make([]Param, len(paramItems))
	for i, item := range paramItems {
		pf := fieldMap(item)
		t, err := typeDescFromValue(pf["type"])
		if err != nil {
			return FuncSig{}, err
		}
		params[i] = Param{Name: pf["name"].Str, Type: t}
	}
	resultItems := f["results"].Items
	results := make([]TypeDesc, len(resultItems))
	for i, item := range resultItems {
		t, err := typeDescFromValue(item)
		if err != nil {
			return FuncSig{}, err
		}
		results[i] = t
	}
	return FuncSig{
		Interface: f["interface"].Str,
		Name:      f["name"].Str,
		Params:    params,
		Results:   results,
	}, nil
}

// Hash computes the function hash H("func" || param-type-hash* ||
// result-type-hash*) for sig, positional on parameters and results.
func (f FuncSig) Hash() typehash.Hash {
	hashes := make([]typehash.Hash, 0, len(f.Params)+len(f.Results)+1)
	for _, p := range f.Params {
		hashes = append(hashes, p.Type.Hash())
	}
	for _, r := range f.Results {
		hashes = append(hashes, r.Hash())
	}
	return typehash.DomainHash("func", hashes...)
}

func funcSigListValue(sigs []FuncSig) value.Value {
	items := make([]value.Value, len(sigs))
	for i, s := range sigs {
		items[i] = s.toValue()
	}
	return value.List(value.TRecord("func-sig"), items)
}

func funcSigListFromValue(v value.Value) ([]FuncSig, error) {
	out := make([]FuncSig, len(v.Items))
	for i, item := range v.Items {
		s, err := funcSigFromValue(item)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (b InterfaceBinding) toValue() value.Value {
	a, b2, c, d := b.Hash.ToU64s()
	return value.Record("interface-hash",
		value.Field{Name: "name", Value: value.Str(b.Name)},
		value.Field{Name: "hash", Value: value.Tuple(value.U64(a), value.U64(b2), value.U64(c), value.U64(d))},
	)
}

func interfaceBindingFromValue(v value.Value) (InterfaceBinding, error) {
	if v.Kind != value.KindRecord || v.Name != "interface-hash" {
		return InterfaceBinding{}, errors.CodecTypeMismatch("interface-hash record", v.Kind.String())
	}
	f := fieldMap(v)
	hv := f["hash"]
	if len(hv.Items) != 4 {
		return InterfaceBinding{}, errors.InvalidEncoding("interface hash must be a 4-tuple")
	}
	h := typehash.FromU64s(hv.Items[0].U64, hv.Items[1].U64, hv.Items[2].U64, hv.Items[3].U64)
	return InterfaceBinding{Name: f["name"].Str, Hash: h}, nil
}

func bindingListValue(bindings []InterfaceBinding) value.Value {
	items := make([]value.Value, len(bindings))
	for i, b := range bindings {
		items[i] = b.toValue()
	}
	return value.List(value.TRecord("interface-hash"), items)
}

func bindingListFromValue(v value.Value) ([]InterfaceBinding, error) {
	out := make([]InterfaceBinding, len(v.Items))
	for i, item := range v.Items {
		b, err := interfaceBindingFromValue(item)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
