package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/sylt-lang/sylt/pkg/value"
)

// ---------------------------------------------------------------------------
// Program image: canonical CBOR serialization of a compiled program
// ---------------------------------------------------------------------------

// ImageMagic identifies a sylt program image.
const ImageMagic = "SYLT"

// ImageVersion is bumped on incompatible wire changes.
const ImageVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder: %v", err))
	}
}

type imageFile struct {
	Magic   string      `cbor:"magic"`
	Version int         `cbor:"version"`
	BuildID string      `cbor:"build_id"`
	Program wireProgram `cbor:"program"`
}

// wireProgram preserves the four orderings instruction operands are
// baked against: blocks, constants, strings and extern names.
type wireProgram struct {
	Blocks      []wireBlock `cbor:"blocks"`
	Constants   []wireValue `cbor:"constants"`
	Strings     []string    `cbor:"strings"`
	ExternNames []string    `cbor:"extern_names"`
	Globals     int         `cbor:"globals"`
	Blobs       []wireBlob  `cbor:"blobs"`
}

type wireBlock struct {
	Name   string     `cbor:"name"`
	File   string     `cbor:"file"`
	Args   int        `cbor:"args"`
	Instrs []wireInst `cbor:"instrs"`
	Lines  []int      `cbor:"lines"`
	Ups    []wireUp   `cbor:"ups"`
	Ty     wireType   `cbor:"ty"`
}

type wireInst struct {
	Op byte `cbor:"op"`
	A  int  `cbor:"a"`
}

type wireUp struct {
	InParent bool `cbor:"in_parent"`
	Slot     int  `cbor:"slot"`
}

type wireBlob struct {
	ID     int                 `cbor:"id"`
	Name   string              `cbor:"name"`
	Fields map[string]wireType `cbor:"fields"`
}

type wireValue struct {
	Kind   string      `cbor:"kind"`
	Int    int64       `cbor:"int,omitempty"`
	Float  float64     `cbor:"float,omitempty"`
	Bool   bool        `cbor:"bool,omitempty"`
	Str    string      `cbor:"str,omitempty"`
	Elems  []wireValue `cbor:"elems,omitempty"`
	Extern int         `cbor:"extern,omitempty"` // index into ExternNames
	Blob   int         `cbor:"blob,omitempty"`   // index into Blobs
}

type wireType struct {
	Kind   string     `cbor:"kind"`
	Elems  []wireType `cbor:"elems,omitempty"`
	Key    *wireType  `cbor:"key,omitempty"`
	Value  *wireType  `cbor:"value,omitempty"`
	Ret    *wireType  `cbor:"ret,omitempty"`
	Params []wireType `cbor:"params,omitempty"`
	Blob   int        `cbor:"blob,omitempty"` // index into Blobs
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type imageEncoder struct {
	blobIdx map[*value.Blob]int
	blobs   []*value.Blob
}

// EncodeImage serializes a program, stamped with a fresh build id.
func EncodeImage(prog *Program) ([]byte, error) {
	enc := &imageEncoder{blobIdx: map[*value.Blob]int{}}

	wp := wireProgram{
		Strings:     prog.Strings,
		ExternNames: prog.ExternNames,
		Globals:     prog.Globals,
	}

	for _, c := range prog.Constants {
		wv, err := enc.encodeValue(c)
		if err != nil {
			return nil, err
		}
		wp.Constants = append(wp.Constants, wv)
	}

	for _, b := range prog.Blocks {
		wb := wireBlock{
			Name:  b.Name,
			File:  b.File,
			Args:  b.Args,
			Lines: b.Lines,
			Ty:    enc.encodeType(b.Ty),
		}
		for _, instr := range b.Instrs {
			wb.Instrs = append(wb.Instrs, wireInst{Op: byte(instr.Op), A: instr.A})
		}
		for _, up := range b.Ups {
			wb.Ups = append(wb.Ups, wireUp{InParent: up.InParent, Slot: up.Slot})
		}
		wp.Blocks = append(wp.Blocks, wb)
	}

	// Blob table last: encoding values and types above fills it.
	for _, b := range enc.blobs {
		wb := wireBlob{ID: b.ID, Name: b.Name, Fields: map[string]wireType{}}
		for name, ft := range b.Fields {
			wb.Fields[name] = enc.encodeType(ft)
		}
		wp.Blobs = append(wp.Blobs, wb)
	}

	return encMode.Marshal(imageFile{
		Magic:   ImageMagic,
		Version: ImageVersion,
		BuildID: uuid.NewString(),
		Program: wp,
	})
}

func (enc *imageEncoder) blobRef(b *value.Blob) int {
	if i, ok := enc.blobIdx[b]; ok {
		return i
	}
	i := len(enc.blobs)
	enc.blobIdx[b] = i
	enc.blobs = append(enc.blobs, b)
	return i
}

func (enc *imageEncoder) encodeValue(v value.Value) (wireValue, error) {
	switch v := v.(type) {
	case value.Nil:
		return wireValue{Kind: "nil"}, nil
	case value.Bool:
		return wireValue{Kind: "bool", Bool: bool(v)}, nil
	case value.Int:
		return wireValue{Kind: "int", Int: int64(v)}, nil
	case value.Float:
		return wireValue{Kind: "float", Float: float64(v)}, nil
	case value.String:
		return wireValue{Kind: "str", Str: string(v)}, nil
	case value.Tuple:
		wv := wireValue{Kind: "tuple"}
		for _, e := range v {
			we, err := enc.encodeValue(e)
			if err != nil {
				return wireValue{}, err
			}
			wv.Elems = append(wv.Elems, we)
		}
		return wv, nil
	case value.ExternFunction:
		return wireValue{Kind: "extern", Extern: int(v)}, nil
	case *value.Blob:
		return wireValue{Kind: "blob", Blob: enc.blobRef(v)}, nil
	default:
		return wireValue{}, fmt.Errorf("cannot serialize constant %s", v)
	}
}

func (enc *imageEncoder) encodeType(t value.Type) wireType {
	switch t := t.(type) {
	case nil:
		return wireType{Kind: "void"}
	case value.VoidType:
		return wireType{Kind: "void"}
	case value.UnknownType:
		return wireType{Kind: "unknown"}
	case value.InvalidType:
		return wireType{Kind: "invalid"}
	case value.IntType:
		return wireType{Kind: "int"}
	case value.FloatType:
		return wireType{Kind: "float"}
	case value.BoolType:
		return wireType{Kind: "bool"}
	case value.StringType:
		return wireType{Kind: "str"}
	case value.TupleType:
		wt := wireType{Kind: "tuple"}
		for _, e := range t {
			wt.Elems = append(wt.Elems, enc.encodeType(e))
		}
		return wt
	case value.ListType:
		elem := enc.encodeType(t.Elem)
		return wireType{Kind: "list", Value: &elem}
	case value.SetType:
		elem := enc.encodeType(t.Elem)
		return wireType{Kind: "set", Value: &elem}
	case value.DictType:
		key := enc.encodeType(t.Key)
		val := enc.encodeType(t.Value)
		return wireType{Kind: "dict", Key: &key, Value: &val}
	case *value.FunctionType:
		ret := enc.encodeType(t.Ret)
		wt := wireType{Kind: "fn", Ret: &ret}
		for _, p := range t.Params {
			wt.Params = append(wt.Params, enc.encodeType(p))
		}
		return wt
	case value.InstanceType:
		return wireType{Kind: "instance", Blob: enc.blobRef(t.Blob)}
	case value.BlobType:
		return wireType{Kind: "blob", Blob: enc.blobRef(t.Blob)}
	case value.IterType:
		elem := enc.encodeType(t.Elem)
		return wireType{Kind: "iter", Value: &elem}
	case value.UnionType:
		wt := wireType{Kind: "union"}
		for _, a := range t {
			wt.Elems = append(wt.Elems, enc.encodeType(a))
		}
		return wt
	case value.TyType:
		return wireType{Kind: "ty"}
	case value.ExternFunctionType:
		return wireType{Kind: "externfn"}
	default:
		return wireType{Kind: "unknown"}
	}
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// DecodeImage deserializes a program and re-links its extern
// references by name against the given registry. Extern names missing
// from the registry are an error, not a silent dangling index.
func DecodeImage(data []byte, externs *Registry) (*Program, error) {
	var img imageFile
	if err := decMode.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("malformed image: %w", err)
	}
	if img.Magic != ImageMagic {
		return nil, fmt.Errorf("not a sylt image (magic %q)", img.Magic)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("unsupported image version %d, want %d", img.Version, ImageVersion)
	}

	wp := img.Program
	dec := &imageDecoder{blobs: make([]*value.Blob, len(wp.Blobs))}

	// Blobs first: types and constants reference them by index. Two
	// sweeps, since blob fields may reference other blobs.
	for i, wb := range wp.Blobs {
		dec.blobs[i] = &value.Blob{ID: wb.ID, Name: wb.Name, Fields: map[string]value.Type{}}
	}
	for i, wb := range wp.Blobs {
		for name, wt := range wb.Fields {
			dec.blobs[i].Fields[name] = dec.decodeType(wt)
		}
	}

	prog := &Program{
		Strings:     wp.Strings,
		ExternNames: wp.ExternNames,
		Globals:     wp.Globals,
	}

	for _, wv := range wp.Constants {
		v, err := dec.decodeValue(wv, wp.ExternNames, externs)
		if err != nil {
			return nil, err
		}
		prog.Constants = append(prog.Constants, v)
	}

	for _, wb := range wp.Blocks {
		b := &Block{
			Name:  wb.Name,
			File:  wb.File,
			Args:  wb.Args,
			Lines: wb.Lines,
		}
		if ty, ok := dec.decodeType(wb.Ty).(*value.FunctionType); ok {
			b.Ty = ty
		} else {
			b.Ty = &value.FunctionType{Ret: value.VoidType{}}
		}
		for _, wi := range wb.Instrs {
			b.Instrs = append(b.Instrs, Instr{Op: Opcode(wi.Op), A: wi.A})
		}
		for _, wu := range wb.Ups {
			b.Ups = append(b.Ups, UpDesc{InParent: wu.InParent, Slot: wu.Slot})
		}
		prog.Blocks = append(prog.Blocks, b)
	}

	if len(prog.Blocks) == 0 {
		return nil, fmt.Errorf("image has no blocks")
	}
	return prog, nil
}

type imageDecoder struct {
	blobs []*value.Blob
}

func (dec *imageDecoder) decodeValue(wv wireValue, names []string, externs *Registry) (value.Value, error) {
	switch wv.Kind {
	case "nil":
		return value.Nil{}, nil
	case "bool":
		return value.Bool(wv.Bool), nil
	case "int":
		return value.Int(wv.Int), nil
	case "float":
		return value.Float(wv.Float), nil
	case "str":
		return value.String(wv.Str), nil
	case "tuple":
		elems := make(value.Tuple, len(wv.Elems))
		for i, we := range wv.Elems {
			e, err := dec.decodeValue(we, names, externs)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return elems, nil
	case "extern":
		if wv.Extern < 0 || wv.Extern >= len(names) {
			return nil, fmt.Errorf("extern reference %d out of range", wv.Extern)
		}
		name := names[wv.Extern]
		idx, ok := externs.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("extern %q is not registered in this host", name)
		}
		return value.ExternFunction(idx), nil
	case "blob":
		if wv.Blob < 0 || wv.Blob >= len(dec.blobs) {
			return nil, fmt.Errorf("blob reference %d out of range", wv.Blob)
		}
		return dec.blobs[wv.Blob], nil
	default:
		return nil, fmt.Errorf("unknown constant kind %q", wv.Kind)
	}
}

func (dec *imageDecoder) decodeType(wt wireType) value.Type {
	switch wt.Kind {
	case "void":
		return value.VoidType{}
	case "unknown":
		return value.UnknownType{}
	case "invalid":
		return value.InvalidType{}
	case "int":
		return value.IntType{}
	case "float":
		return value.FloatType{}
	case "bool":
		return value.BoolType{}
	case "str":
		return value.StringType{}
	case "tuple":
		elems := make(value.TupleType, len(wt.Elems))
		for i, e := range wt.Elems {
			elems[i] = dec.decodeType(e)
		}
		return elems
	case "list":
		return value.ListType{Elem: dec.decodeRef(wt.Value)}
	case "set":
		return value.SetType{Elem: dec.decodeRef(wt.Value)}
	case "dict":
		return value.DictType{Key: dec.decodeRef(wt.Key), Value: dec.decodeRef(wt.Value)}
	case "fn":
		fn := &value.FunctionType{Ret: dec.decodeRef(wt.Ret)}
		for _, p := range wt.Params {
			fn.Params = append(fn.Params, dec.decodeType(p))
		}
		return fn
	case "instance":
		if wt.Blob >= 0 && wt.Blob < len(dec.blobs) {
			return value.InstanceType{Blob: dec.blobs[wt.Blob]}
		}
		return value.UnknownType{}
	case "blob":
		if wt.Blob >= 0 && wt.Blob < len(dec.blobs) {
			return value.BlobType{Blob: dec.blobs[wt.Blob]}
		}
		return value.UnknownType{}
	case "iter":
		return value.IterType{Elem: dec.decodeRef(wt.Value)}
	case "union":
		alts := make(value.UnionType, len(wt.Elems))
		for i, a := range wt.Elems {
			alts[i] = dec.decodeType(a)
		}
		return alts
	case "ty":
		return value.TyType{}
	case "externfn":
		return value.ExternFunctionType{}
	default:
		return value.UnknownType{}
	}
}

func (dec *imageDecoder) decodeRef(wt *wireType) value.Type {
	if wt == nil {
		return value.UnknownType{}
	}
	return dec.decodeType(*wt)
}
