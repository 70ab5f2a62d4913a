package dispatch

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
)

// extractPayload turns a raw request body into the key-value payload the
// normalizers consume. It never fails: anything that cannot be parsed as its
// declared content type degrades to {"raw": <body>}. forceGeneric is set
// when the body was valid JSON but not an object (array, string, number),
// in which case the source-specific normalizer would have nothing to key on.
func extractPayload(contentType string, body []byte) (data map[string]interface{}, forceGeneric bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	switch {
	case strings.Contains(mediaType, "application/json"):
		return extractJSON(body)
	case strings.Contains(mediaType, "application/x-www-form-urlencoded"):
		return extractForm(body), false
	case strings.Contains(mediaType, "multipart/form-data"):
		return extractMultipart(body, params["boundary"]), false
	default:
		return rawPayload(body), false
	}
}

func extractJSON(body []byte) (map[string]interface{}, bool) {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return rawPayload(body), false
	}

	if obj, ok := parsed.(map[string]interface{}); ok {
		return obj, false
	}

	// Valid JSON, wrong shape (array or scalar).
	return rawPayload(body), true
}

func extractForm(body []byte) map[string]interface{} {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return rawPayload(body)
	}

	data := make(map[string]interface{}, len(values))
	for key := range values {
		data[key] = values.Get(key)
	}
	return data
}

func extractMultipart(body []byte, boundary string) map[string]interface{} {
	if boundary == "" {
		return rawPayload(body)
	}

	data := make(map[string]interface{})
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}

		// File parts carry binary blobs, not notification fields.
		if part.FileName() != "" {
			_ = part.Close()
			continue
		}

		name := part.FormName()
		value, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			break
		}
		if _, seen := data[name]; name != "" && !seen {
			data[name] = string(value)
		}
	}

	if len(data) == 0 {
		return rawPayload(body)
	}
	return data
}

func rawPayload(body []byte) map[string]interface{} {
	return map[string]interface{}{"raw": string(body)}
}
