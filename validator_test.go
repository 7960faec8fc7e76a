package pulse

import (
	"errors"
	"strings"
	"testing"

	perrors "github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

func TestValidIdentifier(t *testing.T) {
	for _, s := range []string{"", " ", "\t\n"} {
		err := validIdentifier("track", "eventName", s)
		if !errors.Is(err, perrors.ErrInvalidInput) {
			t.Fatalf("%q: expected invalid input, got %v", s, err)
		}
	}
	if err := validIdentifier("track", "eventName", " a "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeProperties(t *testing.T) {
	t.Run("should turn nil into an empty map", func(t *testing.T) {
		m, err := normalizeProperties("track", "properties", nil)
		if err != nil || m.Len() != 0 {
			t.Fatalf("expected empty map, got %v (%v)", m, err)
		}
	})

	t.Run("should reject the whole map on one bad value", func(t *testing.T) {
		_, err := normalizeProperties("track", "properties", map[string]any{
			"ok":  1,
			"bad": func() {},
		})
		var e *perrors.Error
		if !errors.As(err, &e) || e.Kind != perrors.KindUnserializable {
			t.Fatalf("expected unserializable, got %v", err)
		}
		if e.Method != "track" || strings.Join(e.Path, ".") != "properties.bad" {
			t.Fatalf("expected method and path, got %+v", e)
		}
	})
}

func TestCallArgs(t *testing.T) {
	t.Run("should keep the first failure", func(t *testing.T) {
		b := newCallArgs("alias")
		b.identifier("alias", "")
		b.identifier("distinctId", "")

		var e *perrors.Error
		if !errors.As(b.err, &e) || e.Path[0] != "alias" {
			t.Fatalf("expected alias failure, got %v", b.err)
		}
	})

	t.Run("should merge only the marked argument", func(t *testing.T) {
		b := newCallArgs("trackWithGroups")
		b.merged("properties", map[string]any{"a": 1})
		b.properties("groups", map[string]any{"company": "acme"})
		b.merge(NewLibraryMetadata(LibName, LibVersion))

		props, _ := b.args.Get("properties")
		pm, _ := props.Map()
		groups, _ := b.args.Get("groups")
		gm, _ := groups.Map()
		if !pm.Has(MetaLib) || gm.Has(MetaLib) {
			t.Fatalf("unexpected merge %v / %v", pm, gm)
		}
	})

	t.Run("should reject nil values", func(t *testing.T) {
		b := newCallArgs("setGroup")
		b.value("groupID", nil)
		if !errors.Is(b.err, perrors.ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", b.err)
		}
	})

	t.Run("should convert values", func(t *testing.T) {
		b := newCallArgs("setGroup")
		b.value("groupID", []string{"a", "b"})
		v, _ := b.args.Get("groupID")
		if !v.Equal(value.List(value.String("a"), value.String("b"))) {
			t.Fatalf("unexpected value %v", v)
		}
	})
}
