package models

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Kind(""), "unknown"},
		{KindUnknown, "unknown"},
		{KindDirectImage, "direct_image"},
		{KindKnownCDN, "known_cdn"},
		{KindPlatformPage, "platform_page"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestKind_PassThrough(t *testing.T) {
	assert.True(t, KindDirectImage.PassThrough())
	assert.True(t, KindKnownCDN.PassThrough())
	assert.False(t, KindPlatformPage.PassThrough())
	assert.False(t, KindUnknown.PassThrough())
}

func TestPlatform_String(t *testing.T) {
	assert.Equal(t, "none", PlatformNone.String())
	assert.Equal(t, "youtube", PlatformYouTube.String())
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		input   string
		want    Variant
		wantErr bool
	}{
		{"", VariantStandard, false},
		{"standard", VariantStandard, false},
		{"EXTREME", VariantExtreme, false},
		{"  extreme ", VariantExtreme, false},
		{"blocky", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVariant(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "ParseVariant(%q)", tt.input)
			continue
		}
		require.NoError(t, err, "ParseVariant(%q)", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestDefaultBudgets(t *testing.T) {
	assert.Equal(t, Budget{Variant: VariantExtreme, TargetBytes: 3072}, ExtremeBudget())
	assert.Equal(t, Budget{Variant: VariantStandard, TargetBytes: 102400}, StandardBudget())
}

func TestEncodedImage_Encodings(t *testing.T) {
	img := &EncodedImage{Data: []byte{0xff, 0xd8, 0xff}, TargetBytes: 3}

	assert.Equal(t, 3, img.Size())
	assert.True(t, img.WithinBudget())

	decoded, err := base64.StdEncoding.DecodeString(img.Base64())
	require.NoError(t, err)
	assert.Equal(t, img.Data, decoded)
	assert.Equal(t, "data:image/jpeg;base64,"+img.Base64(), img.DataURL())

	img.TargetBytes = 2
	assert.False(t, img.WithinBudget())
}
