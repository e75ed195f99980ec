package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// CSVParser reads a header row followed by data rows. Header names are
// trimmed and lower-cased so "Product Number" and "product_number" styles
// can be matched by the caller after normalization.
type CSVParser struct {
	delimiter  rune
	encoding   string
	lazyQuotes bool
	trimSpace  bool
	headerMap  map[string]int
	headers    []string
	currentRow int
	totalRows  int
	reader     *csv.Reader
}

// ParserOption configures a CSVParser
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default ',')
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithEncoding sets the source encoding: utf-8 (default), windows-1252 or iso-8859-1
func WithEncoding(name string) ParserOption {
	return func(p *CSVParser) {
		p.encoding = name
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithTrimSpace trims fields and headers
func WithTrimSpace(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimSpace = trim
	}
}

// NewCSVParser prepares r for reading. A UTF-8 byte order mark is dropped;
// UTF-8 input that is not valid UTF-8 is rejected with ErrInvalidEncoding.
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	p := &CSVParser{
		delimiter:  ',',
		encoding:   EncodingUTF8,
		lazyQuotes: true,
		trimSpace:  true,
		headerMap:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	enc, err := lookupEncoding(p.encoding)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(decodeReader(r, enc))
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xEF\xBB\xBF" {
		_, _ = br.Discard(3)
	}
	if err := checkContent(br, enc == nil); err != nil {
		return nil, err
	}

	p.reader = csv.NewReader(br)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = p.lazyQuotes
	p.reader.TrimLeadingSpace = p.trimSpace
	p.reader.FieldsPerRecord = -1
	return p, nil
}

// checkContent rejects empty input and, for UTF-8, invalid bytes in the first block
func checkContent(r *bufio.Reader, validateUTF8 bool) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return fmt.Errorf("read import file: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return ErrEmptyFile
	}
	if validateUTF8 && !utf8.Valid(trimIncompleteRune(content)) {
		return ErrInvalidEncoding
	}
	return nil
}

// trimIncompleteRune drops a multi-byte sequence cut off by the peek window
func trimIncompleteRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}

// ParseHeader reads the header row
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		name := NormalizeHeader(h)
		p.headers[i] = name
		if _, dup := p.headerMap[name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, name)
		}
		p.headerMap[name] = i
	}
	if len(p.headers) == 0 || (len(p.headers) == 1 && p.headers[0] == "") {
		return ErrMissingHeader
	}
	p.currentRow, _ = p.reader.FieldPos(0)
	return nil
}

// NormalizeHeader lower-cases a header and joins words with underscores
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

// Headers returns the normalized header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// HasHeader reports whether a normalized column exists
func (p *CSVParser) HasHeader(name string) bool {
	_, ok := p.headerMap[name]
	return ok
}

// MissingHeaders returns the required columns not present in the file
func (p *CSVParser) MissingHeaders(required ...string) []string {
	var missing []string
	for _, h := range required {
		if !p.HasHeader(h) {
			missing = append(missing, h)
		}
	}
	return missing
}

// Row is one data row keyed by normalized header
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns a column value, "" when absent
func (r *Row) Get(column string) string {
	return r.Data[column]
}

// Has reports whether a column carries a non-empty value
func (r *Row) Has(column string) bool {
	return r.Data[column] != ""
}

// IsEmpty reports whether every column is empty
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow returns the next row or io.EOF. LineNumber is the physical line
// the row starts on, the header being line 1.
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			p.currentRow = parseErr.StartLine
		}
		return nil, fmt.Errorf("read row %d: %w", p.currentRow, err)
	}
	p.currentRow, _ = p.reader.FieldPos(0)
	p.totalRows++

	row := &Row{LineNumber: p.currentRow, Data: make(map[string]string, len(p.headers))}
	for i, header := range p.headers {
		var value string
		if i < len(record) {
			value = record[i]
			if p.trimSpace {
				value = strings.TrimSpace(value)
			}
		}
		row.Data[header] = value
	}
	return row, nil
}

// ReadAllRows reads the remaining rows, skipping blank ones. Malformed rows
// are reported in errs and reading continues.
func (p *CSVParser) ReadAllRows(errs *ErrorCollection) ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errs != nil && errors.As(err, &parseErr) {
				errs.Add(NewRowError(p.currentRow, "", ErrCodeImportMalformedRow, parseErr.Err.Error()))
				continue
			}
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}

// TotalRows returns the number of data rows read so far
func (p *CSVParser) TotalRows() int {
	return p.totalRows
}
