package util

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// FormField is a plain multipart form value
type FormField struct {
	Name  string
	Value string
}

// FormFile is a multipart file part
type FormFile struct {
	Field       string
	FileName    string
	ContentType string
	Content     []byte
}

// BuildMultipart encodes files and fields in the given order and returns the
// body together with its Content-Type header value
func BuildMultipart(files []FormFile, fields []FormField) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.FileName))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}

	for _, field := range fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body, w.FormDataContentType(), nil
}
