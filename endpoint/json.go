package endpoint

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// JSONRenderer serializes Value as JSON, followed by a newline.
//
// Status defaults to 200 and ContentType to "application/json". HTML
// characters are not escaped. Value is encoded before anything is written,
// so an encoding failure is returned with the response still untouched.
type JSONRenderer struct {
	Status      int
	ContentType string
	Value       interface{}
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jr.Value); err != nil {
		return err
	}

	ct := jr.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	status := jr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
