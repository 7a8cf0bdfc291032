// Package multipart serialises a Telegram Bot API payload that carries one
// or more uploaded files into a multipart/form-data body, rewriting each
// uploaded field to an "attach://<uuid>" reference the way teloxide-core's
// serde_multipart serialisers do.
package multipart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// InputFile is a file reference usable in any payload field that accepts
// one. Exactly one of the implementations below applies to a given field.
type InputFile interface {
	isInputFile()
}

// FileURL references a file Telegram should fetch itself; sent as a plain
// JSON string, never triggers multipart encoding.
type FileURL struct{ URL string }

func (FileURL) isInputFile() {}

// MarshalJSON encodes FileURL as the bare URL string Telegram's API
// expects, not as a {"URL": ...} object.
func (f FileURL) MarshalJSON() ([]byte, error) { return json.Marshal(f.URL) }

// FileID references a file already known to Telegram by its file_id; sent
// as a plain JSON string, never triggers multipart encoding.
type FileID struct{ ID string }

func (FileID) isInputFile() {}

// MarshalJSON encodes FileID as the bare file_id string Telegram's API
// expects, not as a {"ID": ...} object.
func (f FileID) MarshalJSON() ([]byte, error) { return json.Marshal(f.ID) }

// FileBytes uploads in-memory content as a new file.
type FileBytes struct {
	Name string
	Data []byte
}

func (FileBytes) isInputFile() {}

// FileReader uploads streamed content as a new file. Reader is drained into
// an internal buffer on the first Encode call and replayed from it on every
// later one, so a single FileReader value survives a retried send the same
// way FileBytes does; callers never need to rewind or re-open it.
type FileReader struct {
	Name   string
	Reader io.Reader

	buffered *bufferedReader
}

func (FileReader) isInputFile() {}

// bufferedReader caches the one real read of a FileReader's underlying
// io.Reader so concurrent or repeated Encode calls on the same payload all
// see the same bytes instead of racing to drain the stream.
type bufferedReader struct {
	mu   sync.Mutex
	done bool
	data []byte
	err  error
}

func (b *bufferedReader) fill(r io.Reader) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.data, b.err = io.ReadAll(r)
	b.done = true
}

func (b *bufferedReader) bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data, b.err
}

// ensureBuffered lazily attaches a bufferedReader to fr and, when fv is
// addressable (true for any field reached through a pointer payload), writes
// the updated value back so the next Encode call on the same payload reuses
// the same buffer instead of touching fr.Reader again.
func ensureBuffered(fv reflect.Value, fr FileReader) FileReader {
	if fr.buffered == nil {
		fr.buffered = &bufferedReader{}
		if fv.CanSet() {
			fv.Set(reflect.ValueOf(InputFile(fr)))
		}
	}
	fr.buffered.fill(fr.Reader)
	return fr
}

// NeedsUpload reports whether f must travel as a multipart part rather
// than be inlined as a JSON string.
func NeedsUpload(f InputFile) bool {
	switch f.(type) {
	case FileBytes, FileReader:
		return true
	default:
		return false
	}
}

// HasUploads reports whether payload (a pointer to a JSON-taggable struct)
// has any InputFile field that NeedsUpload. Used to decide JSON vs
// multipart encoding before paying the reflection cost of Encode.
func HasUploads(payload any) bool {
	v := reflect.Indirect(reflect.ValueOf(payload))
	if v.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < v.NumField(); i++ {
		f, ok := fieldInputFile(v.Field(i))
		if ok && NeedsUpload(f) {
			return true
		}
	}
	return false
}

func fieldInputFile(fv reflect.Value) (InputFile, bool) {
	if !fv.CanInterface() {
		return nil, false
	}
	f, ok := fv.Interface().(InputFile)
	if !ok || f == nil {
		return nil, false
	}
	return f, true
}

// Encode serialises payload as multipart/form-data. Every exported struct
// field becomes a form field: InputFile fields needing upload become a
// file part named by a fresh "attach://<uuid>" token (the JSON sent for
// that field is the token string instead of the raw file), every other
// field is JSON-encoded individually, matching teloxide-core's
// MultipartSerializer/PartSerializer split between "plain" and "attach"
// parts. A field literally named "media" is special-cased: when it holds
// an InputFile needing upload, its attach token is substituted in place
// rather than the field being dropped, since `media` is itself the
// payload's primary content in methods like sendPhoto.
func Encode(payload any) (body []byte, contentType string, err error) {
	v := reflect.Indirect(reflect.ValueOf(payload))
	t := v.Type()
	if v.Kind() != reflect.Struct {
		return nil, "", fmt.Errorf("multipart: payload must be a struct, got %s", v.Kind())
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}
		fv := v.Field(i)
		fieldName := jsonFieldName(sf)
		if fieldName == "-" {
			continue
		}
		if fieldName == "" {
			fieldName = sf.Name
		}

		if fileVal, ok := fieldInputFile(fv); ok {
			if !NeedsUpload(fileVal) {
				if err := writeJSONField(w, fieldName, fv.Interface()); err != nil {
					return nil, "", err
				}
				continue
			}
			if fr, isReader := fileVal.(FileReader); isReader {
				fileVal = ensureBuffered(fv, fr)
			}
			token := "attach://" + uuid.NewString()
			if err := writeAttachedFile(w, token, fileVal); err != nil {
				return nil, "", err
			}
			if err := writeField(w, fieldName, token); err != nil {
				return nil, "", err
			}
			continue
		}

		if isEmptyOmittable(sf, fv) {
			continue
		}
		if err := writeJSONField(w, fieldName, fv.Interface()); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeAttachedFile(w *multipart.Writer, token string, f InputFile) error {
	name := strippedAttachName(token)
	switch v := f.(type) {
	case FileBytes:
		part, err := w.CreateFormFile(name, v.Name)
		if err != nil {
			return err
		}
		_, err = part.Write(v.Data)
		return err
	case FileReader:
		part, err := w.CreateFormFile(name, v.Name)
		if err != nil {
			return err
		}
		data, err := v.buffered.bytes()
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	default:
		return fmt.Errorf("multipart: %T does not need upload", f)
	}
}

func strippedAttachName(token string) string {
	const prefix = "attach://"
	return token[len(prefix):]
}

func writeField(w *multipart.Writer, name, value string) error {
	part, err := w.CreateFormField(name)
	if err != nil {
		return err
	}
	_, err = part.Write([]byte(value))
	return err
}

func writeJSONField(w *multipart.Writer, name string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	// Scalars (strings, numbers) are sent raw, not JSON-quoted, matching
	// how Telegram's HTTP API expects multipart form values.
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return writeField(w, name, s)
	}
	return writeField(w, name, string(b))
}

func isEmptyOmittable(sf reflect.StructField, fv reflect.Value) bool {
	if !hasOmitEmpty(sf) {
		return false
	}
	return fv.IsZero()
}

func hasOmitEmpty(sf reflect.StructField) bool {
	tag := sf.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[i+1:] == "omitempty" || hasSuffixOmitEmpty(tag[i:])
		}
	}
	return false
}

func hasSuffixOmitEmpty(s string) bool {
	const want = "omitempty"
	for i := 0; i+len(want) <= len(s); i++ {
		if s[i:i+len(want)] == want {
			return true
		}
	}
	return false
}

func jsonFieldName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return ""
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	return tag
}
