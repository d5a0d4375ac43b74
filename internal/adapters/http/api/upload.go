package api

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/okian/datalens/internal/domain/loader"
)

// contentTypes maps upload media types to formats for raw bodies sent
// without ?format= or ?filename=.
var contentTypes = map[string]loader.Format{
	"text/csv":                  loader.DelimitedText,
	"text/tab-separated-values": loader.DelimitedText,
	"text/plain":                loader.DelimitedText,
	"application/json":          loader.StructuredRecord,
	"application/x-ndjson":      loader.StructuredRecord,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": loader.Spreadsheet,
	"application/vnd.apache.parquet":                                    loader.ColumnarBinary,
	"application/vnd.apache.arrow.file":                                 loader.ColumnarBinary,
}

// uploadReader extracts the payload and its format from a request.
type uploadReader struct {
	maxBytes int64
}

// read accepts either a multipart form with a "file" field or a raw body.
// The format comes from ?format=, then ?filename= or the multipart file
// name, then the Content-Type.
func (u uploadReader) read(w http.ResponseWriter, r *http.Request) ([]byte, loader.Format, error) {
	const op = "api.read_upload"

	r.Body = http.MaxBytesReader(w, r.Body, u.maxBytes)
	q := r.URL.Query()
	name := q.Get("filename")
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		data []byte
		err  error
	)
	if mediaType == "multipart/form-data" {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			return nil, "", WrapKind(op, ErrBadRequest, ferr)
		}
		defer file.Close()
		if name == "" {
			name = header.Filename
		}
		if ct := header.Header.Get("Content-Type"); ct != "" {
			mediaType, _, _ = mime.ParseMediaType(ct)
		}
		data, err = io.ReadAll(file)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return nil, "", Wrap(op, err)
	}

	format, err := resolveFormat(q.Get("format"), name, mediaType)
	if err != nil {
		return nil, "", Wrap(op, err)
	}
	return data, format, nil
}

func resolveFormat(hint, filename, mediaType string) (loader.Format, error) {
	switch {
	case strings.TrimSpace(hint) != "":
		return loader.ParseFormat(hint)
	case filename != "":
		return loader.FormatFromFilename(filename)
	}
	if f, ok := contentTypes[strings.ToLower(mediaType)]; ok {
		return f, nil
	}
	return "", ErrMissingFormat
}
