package multipart

import (
	"bytes"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
)

type fakePayload struct {
	ChatID any      `json:"chat_id"`
	Text   string   `json:"text,omitempty"`
	Photo  InputFile `json:"photo,omitempty"`
}

func TestHasUploads(t *testing.T) {
	if HasUploads(&fakePayload{ChatID: int64(1), Photo: FileID{ID: "abc"}}) {
		t.Fatal("FileID should not require upload")
	}
	if HasUploads(&fakePayload{ChatID: int64(1), Photo: FileURL{URL: "https://example.com/x.png"}}) {
		t.Fatal("FileURL should not require upload")
	}
	if !HasUploads(&fakePayload{ChatID: int64(1), Photo: FileBytes{Name: "x.png", Data: []byte("hi")}}) {
		t.Fatal("FileBytes should require upload")
	}
}

func TestEncode_PlainFieldsAndFileIDNotMultipartSpecial(t *testing.T) {
	body, contentType, err := Encode(&fakePayload{ChatID: int64(42), Text: "hello", Photo: FileID{ID: "file123"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	fields := map[string]string{}
	for {
		part, err := r.NextPart()
		if err != nil {
			break
		}
		buf := &bytes.Buffer{}
		buf.ReadFrom(part)
		fields[part.FormName()] = buf.String()
	}
	if fields["chat_id"] != "42" {
		t.Errorf("chat_id = %q, want 42", fields["chat_id"])
	}
	if fields["text"] != "hello" {
		t.Errorf("text = %q, want hello", fields["text"])
	}
	if fields["photo"] != "file123" {
		t.Errorf("photo = %q, want raw file id string, not an attach:// token", fields["photo"])
	}
}

func TestEncode_FileBytesBecomesAttachToken(t *testing.T) {
	body, contentType, err := Encode(&fakePayload{
		ChatID: int64(1),
		Photo:  FileBytes{Name: "pic.jpg", Data: []byte("binarydata")},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])

	var photoFieldValue string
	var foundFilePart bool
	for {
		part, err := r.NextPart()
		if err != nil {
			break
		}
		buf := &bytes.Buffer{}
		buf.ReadFrom(part)
		if part.FormName() == "photo" {
			photoFieldValue = buf.String()
		}
		if part.FileName() == "pic.jpg" {
			foundFilePart = true
			if buf.String() != "binarydata" {
				t.Errorf("file part content = %q, want binarydata", buf.String())
			}
		}
	}
	if photoFieldValue == "" || photoFieldValue[:len("attach://")] != "attach://" {
		t.Errorf("photo field = %q, want an attach:// token", photoFieldValue)
	}
	if !foundFilePart {
		t.Error("expected a file part named pic.jpg")
	}
}

// filePartContent extracts the named file part's body from an encoded body.
func filePartContent(t *testing.T, body []byte, contentType string) string {
	t.Helper()
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := r.NextPart()
		if err != nil {
			return ""
		}
		if part.FileName() != "" {
			buf := &bytes.Buffer{}
			buf.ReadFrom(part)
			return buf.String()
		}
	}
}

// TestEncode_FileReaderSurvivesRetryViaBuffering exercises the same payload
// pointer across two Encode calls, the way a retried send does, and
// confirms the second call still gets the full bytes even though the
// underlying io.Reader was already drained by the first call.
func TestEncode_FileReaderSurvivesRetryViaBuffering(t *testing.T) {
	payload := &fakePayload{
		ChatID: int64(1),
		Photo:  FileReader{Name: "pic.jpg", Reader: strings.NewReader("streamed-bytes")},
	}

	body1, contentType1, err := Encode(payload)
	if err != nil {
		t.Fatalf("first Encode: %v", err)
	}
	if got := filePartContent(t, body1, contentType1); got != "streamed-bytes" {
		t.Fatalf("first Encode file content = %q, want streamed-bytes", got)
	}

	body2, contentType2, err := Encode(payload)
	if err != nil {
		t.Fatalf("second Encode: %v", err)
	}
	if got := filePartContent(t, body2, contentType2); got != "streamed-bytes" {
		t.Fatalf("second Encode file content = %q, want streamed-bytes replayed from the buffer, not an empty exhausted reader", got)
	}
}
