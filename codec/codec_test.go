package codec

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	perrors "github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

type entry struct {
	key string
	val value.Value
}

func genLeaf() gopter.Gen {
	return gen.OneGenOf(
		gen.Const(value.Null()),
		gen.Bool().Map(func(b bool) value.Value { return value.Bool(b) }),
		gen.AnyString().Map(func(s string) value.Value { return value.String(s) }),
		gen.Float64Range(-1e18, 1e18).Map(func(f float64) value.Value { return value.Number(f) }),
		gen.Int64Range(-1<<40, 1<<40).Map(func(n int64) value.Value { return value.Number(float64(n)) }),
		gen.Int64().Map(func(ms int64) value.Value { return value.Timestamp(ms) }),
		gen.Identifier().Map(func(s string) value.Value { return value.URI("https://example.com/" + s + "?q=1") }),
	)
}

func genValue(depth int) gopter.Gen {
	if depth == 0 {
		return genLeaf()
	}
	child := genValue(depth - 1)

	list := gen.IntRange(0, 4).FlatMap(func(n interface{}) gopter.Gen {
		return gen.SliceOfN(n.(int), child)
	}, reflect.TypeOf([]value.Value{})).Map(func(items []value.Value) value.Value {
		return value.List(items...)
	})

	pair := gopter.CombineGens(gen.AnyString(), child).Map(func(vals []interface{}) entry {
		return entry{key: vals[0].(string), val: vals[1].(value.Value)}
	})
	obj := gen.IntRange(0, 4).FlatMap(func(n interface{}) gopter.Gen {
		return gen.SliceOfN(n.(int), pair)
	}, reflect.TypeOf([]entry{})).Map(func(entries []entry) value.Value {
		m := value.NewMap()
		for _, e := range entries {
			m.Set(e.key, e.val)
		}
		return value.MapValue(m)
	})

	return gen.OneGenOf(genLeaf(), list, obj)
}

func TestProperty_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(v)) equals v", prop.ForAll(
		func(v value.Value) bool {
			data, err := Encode(v)
			if err != nil {
				return false
			}
			got, err := Decode(data)
			if err != nil {
				return false
			}
			return got.Equal(v)
		},
		genValue(3),
	))

	properties.Property("method calls round trip", prop.ForAll(
		func(method string, v value.Value) bool {
			args := value.MapOf("properties", v)
			data, err := EncodeMethodCall(ChannelCall{Method: method, Arguments: args})
			if err != nil {
				return false
			}
			call, err := DecodeMethodCall(data)
			if err != nil {
				return false
			}
			return call.Method == method && call.Arguments.Equal(args)
		},
		gen.Identifier(),
		genValue(2),
	))

	properties.TestingRun(t)
}

func TestEncode_WireLayout(t *testing.T) {
	cases := []struct {
		name string
		in   value.Value
		want []byte
	}{
		{"null", value.Null(), []byte{0}},
		{"true", value.Bool(true), []byte{1}},
		{"small integer as int32", value.Number(3), []byte{3, 3, 0, 0, 0}},
		{"large integer as int64", value.Number(1 << 40), []byte{4, 0, 0, 0, 0, 0, 1, 0, 0}},
		{"fraction as aligned float64", value.Number(1.5), []byte{6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xf8, 0x3f}},
		{"timestamp tag", value.Timestamp(1), []byte{TagTimestamp, 1, 0, 0, 0, 0, 0, 0, 0}},
		{"uri tag", value.URI("a"), []byte{TagURI, 1, 'a'}},
		{"string", value.String("hi"), []byte{7, 2, 'h', 'i'}},
		{"list", value.List(value.Bool(false)), []byte{12, 1, 2}},
		{"map", value.MapValue(value.MapOf("k", value.Null())), []byte{13, 1, 7, 1, 'k', 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("expected % x, got % x", tc.want, got)
			}
		})
	}
}

func TestExtensionTags_OutsideSubstrateRange(t *testing.T) {
	if TagTimestamp <= maxSubstrateTag || TagURI <= maxSubstrateTag {
		t.Fatal("extension tags must not overlap substrate tags")
	}
	if TagTimestamp == TagURI {
		t.Fatal("extension tags must be distinct")
	}
}

func TestEncode_SizePrefixes(t *testing.T) {
	t.Run("should use two byte sizes above 253", func(t *testing.T) {
		got, _ := Encode(value.String(strings.Repeat("x", 300)))
		if !bytes.Equal(got[:4], []byte{7, 254, 0x2c, 0x01}) {
			t.Fatalf("unexpected prefix % x", got[:4])
		}
	})

	t.Run("should use four byte sizes above 65535", func(t *testing.T) {
		got, _ := Encode(value.String(strings.Repeat("x", 70000)))
		if !bytes.Equal(got[:6], []byte{7, 255, 0x70, 0x11, 0x01, 0x00}) {
			t.Fatalf("unexpected prefix % x", got[:6])
		}
	})
}

func TestNumbers_RoundTrip(t *testing.T) {
	nums := []float64{
		0, math.Copysign(0, -1), 1, -1, math.MaxInt32, math.MinInt32, math.MaxInt32 + 1,
		1 << 53, -(1 << 53), 1<<53 + 2, 0.1, math.MaxFloat64, math.SmallestNonzeroFloat64,
		math.Inf(1), math.Inf(-1), math.NaN(),
	}
	for _, n := range nums {
		data, err := Encode(value.Number(n))
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", n, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("unexpected decode error for %v: %v", n, err)
		}
		if !got.Equal(value.Number(n)) {
			t.Fatalf("expected %v, got %v", n, got)
		}
	}
}

func TestRoundTrip_LargeString(t *testing.T) {
	big := strings.Repeat("abcdefghij", 100000)
	in := value.MapValue(value.MapOf("blob", value.String(big), "after", value.Number(7)))

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, _ := out.Map()
	blob, _ := m.Get("blob")
	s, _ := blob.Str()
	if len(s) != 1000000 || s != big {
		t.Fatalf("expected 1000000 intact characters, got %d", len(s))
	}
	if !out.Equal(in) {
		t.Fatal("expected the whole map to round trip")
	}
}

func TestRoundTrip_PreservesKeyOrder(t *testing.T) {
	m := value.NewMap()
	for _, k := range []string{"z", "a", "m", "b"} {
		m.Set(k, value.Bool(true))
	}
	data, _ := Encode(value.MapValue(m))
	out, _ := Decode(data)
	om, _ := out.Map()
	if strings.Join(om.Keys(), "") != "zamb" {
		t.Fatalf("expected insertion order, got %v", om.Keys())
	}
}

func TestEncode_Cycles(t *testing.T) {
	t.Run("should reject a map containing itself", func(t *testing.T) {
		m := value.NewMap()
		m.Set("self", value.MapValue(m))

		_, err := Encode(value.MapValue(m))
		if !errors.Is(err, perrors.ErrUnserializable) {
			t.Fatalf("expected unserializable, got %v", err)
		}
	})

	t.Run("should reject an indirect map cycle", func(t *testing.T) {
		a, b := value.NewMap(), value.NewMap()
		a.Set("b", value.MapValue(b))
		b.Set("list", value.List(value.MapValue(a)))

		_, err := Encode(value.MapValue(a))
		if !errors.Is(err, perrors.ErrUnserializable) {
			t.Fatalf("expected unserializable, got %v", err)
		}
		var e *perrors.Error
		errors.As(err, &e)
		if strings.Join(e.Path, ".") != "b.list.0" {
			t.Fatalf("expected path b.list.0, got %v", e.Path)
		}
	})

	t.Run("should reject a list containing itself", func(t *testing.T) {
		items := make([]value.Value, 1)
		items[0] = value.List(items...)

		_, err := Encode(value.List(items...))
		if !errors.Is(err, perrors.ErrUnserializable) {
			t.Fatalf("expected unserializable, got %v", err)
		}
	})

	t.Run("should accept shared acyclic maps", func(t *testing.T) {
		shared := value.MapOf("k", value.String("v"))
		_, err := Encode(value.List(value.MapValue(shared), value.MapValue(shared)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestEncode_Unserializable(t *testing.T) {
	t.Run("should reject invalid UTF-8", func(t *testing.T) {
		_, err := Encode(value.String("\xff\xfe"))
		if !errors.Is(err, perrors.ErrUnserializable) {
			t.Fatalf("expected unserializable, got %v", err)
		}
	})

	t.Run("should reject excessive nesting", func(t *testing.T) {
		v := value.Null()
		for i := 0; i < value.MaxDepth+2; i++ {
			v = value.List(v)
		}
		_, err := Encode(v)
		if !errors.Is(err, perrors.ErrUnserializable) {
			t.Fatalf("expected unserializable, got %v", err)
		}
	})
}

func TestDecode_Malformed(t *testing.T) {
	str, _ := Encode(value.String("hello"))

	cases := map[string][]byte{
		"empty input":         {},
		"unknown tag":         {200},
		"tag between ranges":  {15},
		"truncated string":    str[:3],
		"truncated int64":     {4, 1, 2},
		"truncated timestamp": {TagTimestamp, 1, 2, 3},
		"oversized list":      {12, 255, 0xff, 0xff, 0xff, 0x7f},
		"non-string key":      {13, 1, 3, 1, 0, 0, 0, 0},
		"duplicate key":       {13, 2, 7, 1, 'k', 0, 7, 1, 'k', 0},
		"invalid utf8":        {7, 2, 0xff, 0xfe},
		"trailing bytes":      {0, 0},
	}

	for name, data := range cases {
		t.Run("should reject "+name, func(t *testing.T) {
			_, err := Decode(data)
			if !errors.Is(err, perrors.ErrMalformedPayload) {
				t.Fatalf("expected malformed payload, got %v", err)
			}
		})
	}

	t.Run("should reject excessive nesting", func(t *testing.T) {
		data := bytes.Repeat([]byte{12, 1}, value.MaxDepth+2)
		data = append(data, 0)
		_, err := Decode(data)
		if !errors.Is(err, perrors.ErrMalformedPayload) {
			t.Fatalf("expected malformed payload, got %v", err)
		}
	})
}

func TestDecode_SubstrateValues(t *testing.T) {
	t.Run("should decode typed lists as numbers", func(t *testing.T) {
		data := []byte{9, 2, 0, 0, 1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := value.List(value.Number(1), value.Number(-1))
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("should decode byte lists", func(t *testing.T) {
		got, err := Decode([]byte{8, 2, 7, 9})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(value.List(value.Number(7), value.Number(9))) {
			t.Fatalf("unexpected %v", got)
		}
	})

	t.Run("should decode large integers", func(t *testing.T) {
		got, err := Decode([]byte{5, 3, '1', '0', '0'})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(value.Number(256)) {
			t.Fatalf("expected 256, got %v", got)
		}
	})
}
