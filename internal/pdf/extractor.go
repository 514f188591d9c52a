// Package pdf extrae texto y metadatos de documentos PDF subidos por el usuario.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	lpdf "github.com/ledongthuc/pdf"
)

const MIMEType = "application/pdf"

// maxMetadataBytes acota el stream XMP que se devuelve al cliente.
const maxMetadataBytes = 64 << 10

var (
	ErrNotPDF   = errors.New("file is not a PDF")
	ErrEmptyPDF = errors.New("file is empty")
)

// Result es el cuerpo de respuesta de POST /api/pdf/parse.
type Result struct {
	Text     string            `json:"text"`
	Pages    int               `json:"pages"`
	Info     map[string]string `json:"info"`
	Metadata string            `json:"metadata"`
}

type Extractor interface {
	Extract(data []byte) (Result, error)
}

type LedongthucExtractor struct{}

func NewExtractor() *LedongthucExtractor {
	return &LedongthucExtractor{}
}

// IsPDF confirma por contenido (magic bytes) que data es un PDF.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is(MIMEType)
}

// Extract valida el contenido y devuelve el texto plano de todas las páginas.
// El parser puede entrar en pánico con archivos corruptos; se convierte en error.
func (LedongthucExtractor) Extract(data []byte) (res Result, err error) {
	if len(data) == 0 {
		return Result{}, ErrEmptyPDF
	}
	if !IsPDF(data) {
		return Result{}, ErrNotPDF
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	text, err := plainText(reader)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:     text,
		Pages:    reader.NumPage(),
		Info:     documentInfo(reader),
		Metadata: xmpMetadata(reader),
	}, nil
}

func plainText(reader *lpdf.Reader) (string, error) {
	var sb strings.Builder
	fonts := make(map[string]*lpdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		if sb.Len() > 0 && text != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// documentInfo aplana el diccionario /Info del trailer (Title, Author, ...).
func documentInfo(reader *lpdf.Reader) map[string]string {
	info := make(map[string]string)
	dict := reader.Trailer().Key("Info")
	if dict.Kind() != lpdf.Dict {
		return info
	}
	for _, key := range dict.Keys() {
		v := dict.Key(key)
		switch v.Kind() {
		case lpdf.String:
			info[key] = v.Text()
		case lpdf.Name:
			info[key] = v.Name()
		case lpdf.Integer, lpdf.Real, lpdf.Bool:
			info[key] = v.String()
		}
	}
	return info
}

func xmpMetadata(reader *lpdf.Reader) string {
	stream := reader.Trailer().Key("Root").Key("Metadata")
	if stream.Kind() != lpdf.Stream {
		return ""
	}
	rc := stream.Reader()
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, maxMetadataBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
