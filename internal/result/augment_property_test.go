package result

import (
	"testing"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestAugmentPrimitiveIdentityProperty 原始值与字节切片增强后保持不变
func TestAugmentPrimitiveIdentityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		recv := newStub(rapid.SliceOf(rapid.StringMatching(`[a-z]{1,8}`)).Draw(t, "caps")...)

		b := rapid.SliceOf(rapid.Byte()).Draw(t, "bytes")
		assert.Equal(t, b, Augment(b, recv, nil))

		s := rapid.String().Draw(t, "string")
		assert.Equal(t, s, Augment(s, recv, nil))

		n := rapid.Int().Draw(t, "int")
		assert.Equal(t, n, Augment(n, recv, nil))

		ok := rapid.Bool().Draw(t, "bool")
		assert.Equal(t, ok, Augment(ok, recv, nil))
	})
}

// TestAugmentMapProperty 增强后的视图保留所有数据字段，并暴露所有不冲突的能力
func TestAugmentMapProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z]{1,6}`)
		caps := rapid.SliceOf(name).Draw(t, "caps")
		excluded := rapid.SliceOf(name).Draw(t, "excluded")
		fields := rapid.MapOf(name, rapid.Int()).Draw(t, "fields")

		data := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			data[k] = v
		}
		hasStatus := rapid.Bool().Draw(t, "hasStatus")
		if hasStatus {
			data["status"] = rapid.Int().Draw(t, "status")
		}

		if rapid.Bool().Draw(t, "hasAlias") {
			data[StatusAlias] = rapid.Int().Draw(t, "alias")
		}

		view, ok := Augment(data, newStub(caps...), excluded).(*View)
		if !ok {
			t.Fatalf("map was not augmented into a view")
		}

		for k, v := range data {
			got, ok := view.Get(k)
			if !ok || got != v {
				t.Fatalf("field %q lost: got %v want %v", k, got, v)
			}
		}
		if hasStatus {
			if _, ok := view.Status(); !ok {
				t.Fatalf("status not preserved under alias")
			}
		}

		for _, c := range caps {
			_, shadowed := view.data[c]
			want := !shadowed && !slice.Contain(excluded, c)
			if view.HasMethod(c) != want {
				t.Fatalf("capability %q exposed=%v want %v", c, view.HasMethod(c), want)
			}
		}
		for _, m := range view.Methods() {
			if !slice.Contain(caps, m) {
				t.Fatalf("unexpected method %q", m)
			}
		}
	})
}
