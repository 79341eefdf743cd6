package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

const (
	textShortTimeout = 3 * time.Minute
	textLongTimeout  = 30 * time.Minute
)

// TextExtract pulls indexable text out of a document or image: pdftotext
// for PDFs, tesseract OCR for images (language from TESSERACT_LANGUAGE),
// ebook-convert for everything Calibre understands. Returns "" without
// error for formats no tool claims.
func TextExtract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".pdf":
		return pdfText(ctx, path)
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".webp", ".bmp":
		return ocrText(ctx, path)
	case ".txt", ".md", ".srt", ".vtt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	case ".epub", ".mobi", ".azw", ".azw3", ".fb2", ".djvu":
		return ebookText(ctx, path)
	default:
		return "", nil
	}
}

func pdfText(ctx context.Context, path string) (string, error) {
	if !runner.Have("pdftotext") {
		return "", fmt.Errorf("pdftotext: %w", util.ErrNotFound)
	}
	res, err := runner.Run(ctx, runner.Cmd{
		Args:        []string{"pdftotext", "-q", path, "-"},
		Timeout:     textShortTimeout,
		DefaultKind: runner.KindUnsupported,
	})
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// ocrText runs tesseract; OCR is slow so it gets the long timeout
func ocrText(ctx context.Context, path string) (string, error) {
	if !runner.Have("tesseract") {
		return "", fmt.Errorf("tesseract: %w", util.ErrNotFound)
	}
	lang := os.Getenv("TESSERACT_LANGUAGE")
	if lang == "" {
		lang = "eng"
	}
	res, err := runner.Run(ctx, runner.Cmd{
		Args:        []string{"tesseract", path, "stdout", "-l", lang},
		Timeout:     textLongTimeout,
		DefaultKind: runner.KindUnsupported,
	})
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

func ebookText(ctx context.Context, path string) (string, error) {
	if !runner.Have("ebook-convert") {
		return "", fmt.Errorf("ebook-convert: %w", util.ErrNotFound)
	}
	tmp, err := os.CreateTemp("", "librarian-text-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	_, err = runner.Run(ctx, runner.Cmd{
		Args:        []string{"ebook-convert", path, tmpPath},
		Timeout:     textLongTimeout,
		DefaultKind: runner.KindUnsupported,
	})
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to read converted text: %w", err)
	}
	return string(data), nil
}
