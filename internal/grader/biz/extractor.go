package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	errEmptyDocument = errors.New("document is empty")
	errNoText        = errors.New("document contains no extractable text")
)

// Extractor 将文档字节流转换为纯文本。
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFExtractor 逐页提取 PDF 文本，页间以换行连接。
type PDFExtractor struct{}

// NewPDFExtractor 创建 PDF 提取器。
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract 提取全部页面文本。无页面或无文本时返回错误。
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", errEmptyDocument
	}

	// 解析器在损坏的输入上可能 panic
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	n := reader.NumPage()
	if n == 0 {
		return "", errEmptyDocument
	}

	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		pages = append(pages, content)
	}

	text = strings.Join(pages, "\n")
	if strings.TrimSpace(text) == "" {
		return "", errNoText
	}
	return text, nil
}

var _ Extractor = (*PDFExtractor)(nil)
