package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTypeRef(t *testing.T) {
	tests := []struct {
		in   string
		want TypeRef
	}{
		{"com.acme.Codec", TypeRef{Name: "com.acme.Codec", Kind: Declared}},
		{"  com.acme.Codec ", TypeRef{Name: "com.acme.Codec", Kind: Declared}},
		{"com.acme.Outer$Inner", TypeRef{Name: "com.acme.Outer$Inner", Kind: Declared}},
		{"int", TypeRef{Name: "int", Kind: Primitive}},
		{"boolean", TypeRef{Name: "boolean", Kind: Primitive}},
		{"com.acme.Codec[]", TypeRef{Name: "com.acme.Codec[]", Kind: Array}},
		{"void", TypeRef{Name: "void", Kind: Void}},
		{"", TypeRef{Kind: Invalid}},
		{"java.util.List<String>", TypeRef{Name: "java.util.List", Kind: Declared}},
		{"com.acme.Base<java.lang.String>", TypeRef{Name: "com.acme.Base", Kind: Declared}},
		{"java.util.Map<String, java.util.List<Integer>>", TypeRef{Name: "java.util.Map", Kind: Declared}},
		{"com.acme.Box<String>[]", TypeRef{Name: "com.acme.Box[]", Kind: Array}},
		{"com.acme.Broken<String", TypeRef{Name: "com.acme.Broken<String", Kind: Invalid}},
		{"com.acme.Odd<String>Tail", TypeRef{Name: "com.acme.Odd<String>Tail", Kind: Invalid}},
		{"<String>", TypeRef{Name: "<String>", Kind: Invalid}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTypeRef(tt.in))
		})
	}
}

func TestAnnotationSpecified(t *testing.T) {
	assert.False(t, Annotation{}.Specified(), "empty list is the unspecified sentinel")
	assert.False(t, Annotation{Contracts: []TypeRef{{Name: "void", Kind: Void}}}.Specified(), "lone void is the default value")
	assert.True(t, Annotation{Contracts: []TypeRef{Ref("com.acme.Codec")}}.Specified())
	assert.True(t, Annotation{Contracts: []TypeRef{{Name: "int", Kind: Primitive}}}.Specified(), "an invalid explicit value is still explicit")
	assert.True(t, Annotation{Contracts: []TypeRef{{Name: "void", Kind: Void}, Ref("com.acme.Codec")}}.Specified())
}

func TestTypeRefString(t *testing.T) {
	assert.Equal(t, "com.acme.Codec", Ref("com.acme.Codec").String())
	assert.Equal(t, "<invalid>", TypeRef{}.String())
}

func TestTerminalPass(t *testing.T) {
	p := TerminalPass()
	assert.True(t, p.Terminal)
	assert.Empty(t, p.Declarations)
}
