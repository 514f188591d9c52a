package http

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biopaper-tutor/internal/pdf"
)

// multipartOverhead cubre boundaries y headers del form por encima del archivo.
const multipartOverhead = 1 << 20

// PDFHandler extrae texto de PDFs subidos.
type PDFHandler struct {
	logger    *zap.Logger
	extractor pdf.Extractor
	maxBytes  int64
}

func NewPDFHandler(logger *zap.Logger, extractor pdf.Extractor, maxBytes int64) *PDFHandler {
	return &PDFHandler{logger: logger, extractor: extractor, maxBytes: maxBytes}
}

// Parse maneja POST /api/pdf/parse (multipart, campo "file").
func (h *PDFHandler) Parse(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || mediaType != pdf.MIMEType {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a PDF"})
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("open uploaded pdf failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse PDF"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("read uploaded pdf failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse PDF"})
		return
	}

	result, err := h.extractor.Extract(data)
	if err != nil {
		if errors.Is(err, pdf.ErrNotPDF) || errors.Is(err, pdf.ErrEmptyPDF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a PDF"})
			return
		}
		h.logger.Error("pdf parsing failed", zap.String("filename", header.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse PDF"})
		return
	}
	h.logger.Info("pdf parsed",
		zap.String("filename", header.Filename),
		zap.Int("pages", result.Pages),
		zap.Int("text_length", len(result.Text)),
	)
	c.JSON(http.StatusOK, result)
}
