package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
)

var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrConflict = fmt.Errorf("conflict")
var ErrForbidden = fmt.Errorf("forbidden")
var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrUnauthorized = fmt.Errorf("unauthorized")
var ErrUnsupportedRelation = fmt.Errorf("unsupported relationship data")

// TransportFailure is returned for every request that did not succeed. It
// carries the raw failure payload as well as any decoded error objects. A
// request that never got a response has StatusCode 0 and the network error
// as its Cause.
type TransportFailure struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Errors      []types.ErrorObject
	Cause       error

	target error
}

func (tf *TransportFailure) Error() string {
	if tf.Cause != nil {
		if tf.StatusCode == 0 {
			return fmt.Sprintf("request failed: %s", tf.Cause.Error())
		}
		return fmt.Sprintf("request failed with status %d: %s", tf.StatusCode, tf.Cause.Error())
	}

	if len(tf.Errors) > 0 {
		e := tf.Errors[0]
		detail := e.Detail
		if detail == "" {
			detail = e.Title
		}
		return fmt.Sprintf("request failed with status %d: %s", tf.StatusCode, detail)
	}

	return fmt.Sprintf("request failed with status %d (content-type: %s)", tf.StatusCode, tf.ContentType)
}

func (tf *TransportFailure) Is(target error) bool {
	return target == tf.target
}

func (tf *TransportFailure) Unwrap() []error {
	if tf.Cause != nil {
		return []error{tf.target, tf.Cause}
	}
	return []error{tf.target}
}

// NewTransportFailure reports a request that failed before a complete response
// was read, such as a network error (code 0) or a truncated body
func NewTransportFailure(code int, target, cause error) error {
	return &TransportFailure{
		StatusCode: code,
		Cause:      cause,
		target:     target,
	}
}

// NewErrorFromResponse maps a failed response to a TransportFailure, decoding a
// JSON:API errors document from the body when there is one. Non-2xx codes
// below 400 map to ErrBadResponse.
func NewErrorFromResponse(code int, contentType string, body []byte) error {
	tf := &TransportFailure{
		StatusCode:  code,
		ContentType: contentType,
		Body:        body,
	}

	report := struct {
		Errors []types.ErrorObject `json:"errors"`
	}{}

	if len(body) > 0 && json.Unmarshal(body, &report) == nil {
		tf.Errors = report.Errors
	}

	if code < http.StatusBadRequest {
		tf.target = ErrBadResponse
		return tf
	}

	status := code
	if len(tf.Errors) > 0 && tf.Errors[0].Status != "" {
		if s, err := strconv.Atoi(tf.Errors[0].Status); err == nil {
			status = s
		}
	}

	tf.target = sentinelFromStatus(status)

	return tf
}

func sentinelFromStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}

	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return ErrBadRequest
	}

	return ErrInternal
}

// NewErrorDocument returns the errors document a server sends for a failed request
func NewErrorDocument(status int, title, detail string) types.Document {
	return types.Document{
		Errors: []types.ErrorObject{
			{
				Status: strconv.Itoa(status),
				Title:  title,
				Detail: detail,
			},
		},
	}
}

// WriteResponse writes an errors document to the supplied http.ResponseWriter
func WriteResponse(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Add("Content-Type", types.MediaType)
	w.WriteHeader(status)

	b, err := json.Marshal(NewErrorDocument(status, title, detail))
	if err == nil {
		w.Write(b)
	}
}

func ReportNotFound(w http.ResponseWriter, detail string) {
	WriteResponse(w, http.StatusNotFound, "Not Found", detail)
}

func ReportBadRequest(w http.ResponseWriter, detail string) {
	WriteResponse(w, http.StatusBadRequest, "Bad Request", detail)
}

func ReportConflict(w http.ResponseWriter, detail string) {
	WriteResponse(w, http.StatusConflict, "Conflict", detail)
}
