package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

func TestVariantKey(t *testing.T) {
	tests := []struct {
		weight int
		italic bool
		want   string
	}{
		{400, false, "regular"},
		{0, false, "regular"},
		{400, true, "italic"},
		{700, false, "700"},
		{700, true, "700italic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VariantKey(tt.weight, tt.italic))
	}
}

func TestResolveFontLink(t *testing.T) {
	roboto := Font{
		ID:     "roboto",
		Family: "Roboto",
		Files: map[string]string{
			"regular":   "https://fonts/roboto-regular.ttf",
			"700":       "https://fonts/roboto-700.ttf",
			"700italic": "https://fonts/roboto-700italic.ttf",
		},
	}

	link := ResolveFontLink(roboto, 700, true)
	assert.Equal(t, FontLink{URL: "https://fonts/roboto-700italic.ttf", Variant: "700italic"}, link)

	link = ResolveFontLink(roboto, 300, false)
	assert.True(t, link.Fallback)
	assert.Equal(t, "https://fonts/roboto-regular.ttf", link.URL)

	_, err := roboto.Variant(300, false)
	assert.True(t, rkerrors.IsUnresolvedFont(err))

	link = ResolveFontLink(DefaultFont, 700, false)
	assert.Equal(t, DefaultFont.Files[VariantRegular], link.URL)
	assert.True(t, link.Fallback)
}
