package transcript

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

// FallbackCharset is assumed for subtitle files that are not valid UTF-8
// and name no charset. Most caption tools that do not write UTF-8 write
// Windows-1252.
const FallbackCharset = "windows-1252"

// ToUTF8 converts data from charset to UTF-8. An empty charset keeps valid
// UTF-8 as is and decodes anything else as FallbackCharset. A leading
// UTF-8 byte order mark is dropped.
func ToUTF8(data []byte, charset string) ([]byte, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	switch charset {
	case "", "utf-8", "utf8":
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
		if utf8.Valid(data) {
			return data, nil
		}
		if charset != "" {
			return nil, fmt.Errorf("%w: input is not valid UTF-8", rkerrors.ErrValidation)
		}
		charset = FallbackCharset
	}

	decoder, err := charsetDecoder(charset)
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", charset, err)
	}
	return out, nil
}

func charsetDecoder(charset string) (transform.Transformer, error) {
	switch charset {
	case "iso-8859-1", "latin1", "iso_8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2.NewDecoder(), nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder(), nil
	case "koi8-r":
		return charmap.KOI8R.NewDecoder(), nil
	case "gb2312", "gbk", "gb18030":
		return simplifiedchinese.GBK.NewDecoder(), nil
	case "big5":
		return traditionalchinese.Big5.NewDecoder(), nil
	case "euc-jp":
		return japanese.EUCJP.NewDecoder(), nil
	case "shift_jis", "shift-jis", "sjis":
		return japanese.ShiftJIS.NewDecoder(), nil
	case "euc-kr":
		return korean.EUCKR.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: unknown charset %q", rkerrors.ErrValidation, charset)
	}
}
