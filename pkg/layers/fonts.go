package layers

import (
	"fmt"
	"strconv"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

// VariantRegular is the variant every webfont provides.
const VariantRegular = "regular"

// Font is a webfont family with one file per variant. Variant keys follow
// the webfonts API: "regular", "italic", "700", "700italic".
type Font struct {
	ID       string            `json:"id"`
	Family   string            `json:"family"`
	Category string            `json:"category,omitempty"`
	Files    map[string]string `json:"files"`
}

// DefaultFont is the font of a new project.
var DefaultFont = Font{
	ID:       "open-sans",
	Family:   "Open Sans",
	Category: "sans-serif",
	Files: map[string]string{
		VariantRegular: "http://fonts.gstatic.com/s/opensans/v20/mem8YaGs126MiZpBA-U1UpcaXcl0Aw.ttf",
	},
}

// VariantKey returns the webfonts variant key for a weight and style.
func VariantKey(weight int, italic bool) string {
	if weight == 0 || weight == 400 {
		if italic {
			return "italic"
		}
		return VariantRegular
	}
	key := strconv.Itoa(weight)
	if italic {
		key += "italic"
	}
	return key
}

// Variant returns the file of the exact variant or ErrUnresolvedFont.
func (f Font) Variant(weight int, italic bool) (string, error) {
	key := VariantKey(weight, italic)
	if url, ok := f.Files[key]; ok && url != "" {
		return url, nil
	}
	return "", fmt.Errorf("%w: %s has no %s variant", rkerrors.ErrUnresolvedFont, f.Family, key)
}

// FontLink is a resolved font file.
type FontLink struct {
	URL     string
	Variant string
	// Fallback is set when the requested variant was missing and the
	// regular file was used instead.
	Fallback bool
}

// ResolveFontLink picks the font file for weight and italic. A missing
// variant falls back to the regular file; resolution never fails.
func ResolveFontLink(f Font, weight int, italic bool) FontLink {
	key := VariantKey(weight, italic)
	url, err := f.Variant(weight, italic)
	if err == nil {
		return FontLink{URL: url, Variant: key}
	}
	return FontLink{URL: f.Files[VariantRegular], Variant: VariantRegular, Fallback: true}
}
