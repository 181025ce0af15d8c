package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"pdf_compressor/pdf"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func HandleCompress(c *gin.Context, compressor Compressor, config *Config, logger *zap.Logger) {
	file, header, err := c.Request.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No PDF file provided"})
		return
	}
	defer file.Close()

	// Validate PDF file
	if err := validatePDFFile(file, header, config.MaxFileSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, config.MaxFileSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	if int64(len(data)) > config.MaxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file exceeds maximum allowed %d bytes", config.MaxFileSize)})
		return
	}

	// Sanitize filename to prevent path traversal
	name := sanitizeFilename(header.Filename)

	result, err := compressor.CompressPDF(data, name)
	if err != nil {
		logger.Error("PDF compression error",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("name", name),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "PDF compression failed"})
		return
	}

	writeResultHeaders(c, result)

	filename := name
	if result.Compressed {
		filename = compressedFilename(name)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", result.Buffer)
}

func HandleToolStatus(c *gin.Context, compressor Compressor) {
	c.JSON(http.StatusOK, compressor.ToolStatus())
}

func HandleHealth(c *gin.Context, compressor Compressor) {
	status := compressor.ToolStatus()
	c.JSON(http.StatusOK, gin.H{
		"status":              "healthy",
		"service":             "pdfcompress",
		"ghostscript":         status.Available,
		"ghostscript_version": status.Version,
	})
}

func writeResultHeaders(c *gin.Context, result *pdf.CompressionResult) {
	c.Header(HeaderCompressed, strconv.FormatBool(result.Compressed))
	c.Header(HeaderCompressionRatio, strconv.FormatFloat(result.CompressionRatio, 'f', 2, 64))
	c.Header(HeaderOriginalSize, strconv.FormatInt(result.OriginalSize, 10))
	c.Header(HeaderCompressedSize, strconv.FormatInt(result.CompressedSize, 10))
	if result.Reason != "" {
		c.Header(HeaderReason, result.Reason)
	}
	if result.Error != "" {
		c.Header(HeaderError, headerValue(result.Error))
	}
}

// headerValue flattens tool output into a single bounded header line.
func headerValue(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > MaxErrorHeaderLength {
		s = s[:MaxErrorHeaderLength] + "..."
	}
	return s
}

// compressedFilename turns "report.pdf" into "report_compressed.pdf"
func compressedFilename(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-4]
	}
	return sanitizeFilename(name + "_compressed.pdf")
}

// sanitizeFilename removes path traversal attempts and dangerous characters
func sanitizeFilename(filename string) string {
	// Remove directory separators and path traversal attempts
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	// Get just the base filename to prevent path issues
	filename = filepath.Base(filename)

	filename = strings.TrimSpace(filename)

	// If empty after sanitization, use default
	if filename == "" || filename == "." {
		filename = "document.pdf"
	}

	return filename
}

// validatePDFFile checks if the file is a valid PDF by reading the header
func validatePDFFile(file multipart.File, header *multipart.FileHeader, maxSize int64) error {
	if header.Size > maxSize {
		return fmt.Errorf("file size %d exceeds maximum allowed %d bytes", header.Size, maxSize)
	}

	// Read first 4 bytes to check PDF header
	buffer := make([]byte, 4)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("failed to read file header: %w", err)
	}

	if n < 4 || string(buffer) != "%PDF" {
		return fmt.Errorf("invalid PDF file: header does not match")
	}

	// Seek back to beginning for subsequent reads
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file position: %w", err)
	}

	return nil
}
