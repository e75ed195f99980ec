package csvimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, content string, opts ...ParserOption) *CSVParser {
	t.Helper()
	p, err := NewCSVParser(strings.NewReader(content), opts...)
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())
	return p
}

func TestNewCSVParser(t *testing.T) {
	t.Run("strips utf-8 bom", func(t *testing.T) {
		p := parse(t, "\xEF\xBB\xBFproduct_number,stock\nSW-1,4")
		assert.Equal(t, []string{"product_number", "stock"}, p.Headers())
	})

	t.Run("empty input", func(t *testing.T) {
		for _, content := range []string{"", "  \n\n"} {
			p, err := NewCSVParser(strings.NewReader(content))
			assert.ErrorIs(t, err, ErrEmptyFile)
			assert.Nil(t, p)
		}
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader("product_number,comment\nSW-1,M\xfcller"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("unsupported encoding", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader("a\n1"), WithEncoding("ebcdic"))
		assert.ErrorIs(t, err, ErrUnsupportedEncoding)
	})
}

func TestCSVParser_LegacyEncodings(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		raw      string
		want     string
	}{
		{"windows-1252 umlaut", EncodingWindows1252, "M\xfcller", "Müller"},
		{"windows-1252 euro sign", "cp1252", "\x80 5", "€ 5"},
		{"iso-8859-1 umlaut", EncodingISO88591, "Stra\xdfe", "Straße"},
		{"latin1 alias", "LATIN1", "caf\xe9", "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parse(t, "product_number;comment\nSW-1;"+tt.raw, WithEncoding(tt.encoding), WithDelimiter(';'))
			row, err := p.ReadRow()
			require.NoError(t, err)
			assert.Equal(t, tt.want, row.Get("comment"))
		})
	}
}

func TestCSVParser_ParseHeader(t *testing.T) {
	t.Run("normalizes names", func(t *testing.T) {
		p := parse(t, " Product Number ,WAREHOUSE_CODE,  bin  location code \nSW-1,MAIN,A-1")
		assert.Equal(t, []string{"product_number", "warehouse_code", "bin_location_code"}, p.Headers())
		assert.True(t, p.HasHeader("bin_location_code"))
		assert.False(t, p.HasHeader("stock"))
	})

	t.Run("missing headers", func(t *testing.T) {
		p := parse(t, "product_number,comment\nSW-1,x")
		assert.Equal(t, []string{"stock", "warehouse_code"}, p.MissingHeaders("product_number", "stock", "warehouse_code"))
	})

	t.Run("duplicate column", func(t *testing.T) {
		p, err := NewCSVParser(strings.NewReader("stock,Stock\n1,2"))
		require.NoError(t, err)
		assert.ErrorIs(t, p.ParseHeader(), ErrInvalidHeader)
	})
}

func TestCSVParser_ReadRow(t *testing.T) {
	p := parse(t, "product_number,stock,comment\nSW-1, 5 \nSW-2,7,restocked\n")

	row, err := p.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, 2, row.LineNumber)
	assert.Equal(t, "5", row.Get("stock"))
	assert.Equal(t, "", row.Get("comment"), "short rows are padded")
	assert.False(t, row.Has("comment"))

	row, err = p.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, 3, row.LineNumber)
	assert.Equal(t, "restocked", row.Get("comment"))

	_, err = p.ReadRow()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, p.TotalRows())
}

func TestCSVParser_ReadAllRows(t *testing.T) {
	t.Run("skips blank rows and keeps line numbers", func(t *testing.T) {
		p := parse(t, "product_number,stock\nSW-1,1\n,\n\nSW-2,2\n")
		rows, err := p.ReadAllRows(nil)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2, rows[0].LineNumber)
		assert.Equal(t, 5, rows[1].LineNumber)
	})

	t.Run("malformed rows are collected", func(t *testing.T) {
		p := parse(t, "product_number,stock\nSW-1,1\nSW-2,\"2\"x\nSW-3,3\n", WithLazyQuotes(false))
		errs := NewErrorCollection(10)
		rows, err := p.ReadAllRows(errs)
		require.NoError(t, err)

		assert.Len(t, rows, 2)
		require.Equal(t, 1, errs.Count())
		assert.Equal(t, 3, errs.Errors()[0].Row)
		assert.Equal(t, ErrCodeImportMalformedRow, errs.Errors()[0].Code)
	})
}
