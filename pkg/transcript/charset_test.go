package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

func TestToUTF8(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		charset string
		want    string
	}{
		{name: "utf-8 passes through", data: []byte("café"), want: "café"},
		{name: "byte order mark dropped", data: []byte("\xef\xbb\xbfhi"), want: "hi"},
		{name: "invalid utf-8 falls back to windows-1252", data: []byte("caf\xe9 \x93ok\x94"), want: "café “ok”"},
		{name: "latin1", data: []byte("na\xefve"), charset: "Latin1", want: "naïve"},
		{name: "shift_jis", data: []byte("\x82\xb1\x82\xf1\x82\xc9\x82\xbf\x82\xcd"), charset: "shift_jis", want: "こんにちは"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToUTF8(tt.data, tt.charset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestToUTF8_Errors(t *testing.T) {
	_, err := ToUTF8([]byte("x"), "ebcdic")
	assert.True(t, rkerrors.IsValidation(err))

	_, err = ToUTF8([]byte("caf\xe9"), "utf-8")
	assert.True(t, rkerrors.IsValidation(err), "declared UTF-8 must be valid")
}

func TestImportSubtitlesCharset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.srt")
	srt := "1\n00:00:00,000 --> 00:00:01,000\ncaf\xe9 cr\xe8me\n\n"
	require.NoError(t, os.WriteFile(path, []byte(srt), 0o644))

	src, err := ImportSubtitles(path)
	require.NoError(t, err)
	require.Len(t, src.Segments, 1)
	words := src.Segments[0].WordList()
	require.Len(t, words, 2)
	assert.Equal(t, "café", words[0].Word)
	assert.Equal(t, "crème", words[1].Word)

	src, err = ImportSubtitlesCharset(path, "iso-8859-15")
	require.NoError(t, err)
	assert.Equal(t, "crème", src.Segments[0].WordList()[1].Word)
}
