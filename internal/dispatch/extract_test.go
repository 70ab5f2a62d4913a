package dispatch

import (
	"bytes"
	"mime/multipart"
	"reflect"
	"testing"
)

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name             string
		contentType      string
		body             string
		want             map[string]interface{}
		wantForceGeneric bool
	}{
		{
			name:        "json object",
			contentType: "application/json",
			body:        `{"title":"hi","count":2}`,
			want:        map[string]interface{}{"title": "hi", "count": float64(2)},
		},
		{
			name:        "json with charset parameter",
			contentType: "application/json; charset=utf-8",
			body:        `{"a":"b"}`,
			want:        map[string]interface{}{"a": "b"},
		},
		{
			name:        "invalid json degrades to raw",
			contentType: "application/json",
			body:        `{"title": oops`,
			want:        map[string]interface{}{"raw": `{"title": oops`},
		},
		{
			name:             "json array routes to generic",
			contentType:      "application/json",
			body:             `[1,2,3]`,
			want:             map[string]interface{}{"raw": "[1,2,3]"},
			wantForceGeneric: true,
		},
		{
			name:             "json scalar routes to generic",
			contentType:      "application/json",
			body:             `"hello"`,
			want:             map[string]interface{}{"raw": `"hello"`},
			wantForceGeneric: true,
		},
		{
			name:        "form urlencoded",
			contentType: "application/x-www-form-urlencoded",
			body:        "title=Backup+done&priority=low",
			want:        map[string]interface{}{"title": "Backup done", "priority": "low"},
		},
		{
			name:        "form repeated key keeps first value",
			contentType: "application/x-www-form-urlencoded",
			body:        "tag=a&tag=b",
			want:        map[string]interface{}{"tag": "a"},
		},
		{
			name:        "plain text becomes raw",
			contentType: "text/plain",
			body:        "disk at 91%",
			want:        map[string]interface{}{"raw": "disk at 91%"},
		},
		{
			name:        "missing content type becomes raw",
			contentType: "",
			body:        "anything",
			want:        map[string]interface{}{"raw": "anything"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, forceGeneric := extractPayload(tt.contentType, []byte(tt.body))

			if forceGeneric != tt.wantForceGeneric {
				t.Errorf("forceGeneric = %v, want %v", forceGeneric, tt.wantForceGeneric)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("payload = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractMultipart(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("title", "Release ready"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := w.WriteField("priority", "high"); err != nil {
		t.Fatalf("write field: %v", err)
	}

	fw, err := w.CreateFormFile("attachment", "log.txt")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := fw.Write([]byte("binary stuff")); err != nil {
		t.Fatalf("write file part: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	got, forceGeneric := extractPayload(w.FormDataContentType(), buf.Bytes())
	if forceGeneric {
		t.Error("expected forceGeneric false")
	}

	want := map[string]interface{}{"title": "Release ready", "priority": "high"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payload = %v, want %v", got, want)
	}
}

func TestExtractMultipartWithoutBoundary(t *testing.T) {
	got, _ := extractPayload("multipart/form-data", []byte("garbled"))

	want := map[string]interface{}{"raw": "garbled"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payload = %v, want %v", got, want)
	}
}
