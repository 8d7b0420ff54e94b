// Package ingest 将上传的原始文件内容转换为纯文本.
// 支持 PDF（逐页抽取）与任意文本格式（UTF-8 解码，非法字节替换）.
package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/BaSui01/readr/types"
)

const pdfMagic = "%PDF-"

// ExtractText 按内容类型抽取纯文本.
// contentType 为空时根据文件头嗅探 PDF.
func ExtractText(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", types.NewError(types.ErrInvalidDocument, "empty document")
	}
	if isPDF(data, contentType) {
		return extractPDF(data)
	}
	return decodeText(data), nil
}

func isPDF(data []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte(pdfMagic))
}

// extractPDF 逐页抽取文本，页间以空行分隔；跳过抽取失败的单页.
// 解析库对部分畸形输入会 panic，统一转为 INVALID_DOCUMENT.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = types.NewError(types.ErrInvalidDocument, "unreadable PDF")
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", types.NewError(types.ErrInvalidDocument, "unreadable PDF").WithCause(err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", types.NewError(types.ErrInvalidDocument, "PDF contains no extractable text")
	}
	return strings.Join(pages, "\n\n"), nil
}

// decodeText 按 UTF-8 解码，非法序列替换为 U+FFFD，并去除 BOM.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
