// Package apierr classifies failures of calls to the ArtVision backend.
//
// Every client in this module returns one of three error kinds:
//
//   - *NetworkError: the request never produced a response (dial, DNS, timeout, cancel).
//   - *ServerError: a response arrived with a non-2xx status.
//   - *MalformedResponse: a 2xx response whose body could not be used.
//
// Callers match them with errors.As and show Message(err) to the user.
package apierr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxBody bounds how much of an error body is read and kept.
const maxBody = 64 << 10

type NetworkError struct {
	Op  string // "predict binary", "login", ...
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the transport gave up waiting.
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

type ServerError struct {
	Op      string
	Status  int
	Message string // best effort, from the response body
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Message)
}

type MalformedResponse struct {
	Op     string
	Reason string
	Body   string // truncated
	Err    error
}

func (e *MalformedResponse) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

func (e *MalformedResponse) Unwrap() error { return e.Err }

// Network wraps a transport error.
func Network(op, url string, err error) error {
	return &NetworkError{Op: op, URL: url, Err: err}
}

// Malformed builds a MalformedResponse keeping a short prefix of the body.
func Malformed(op, reason string, body []byte, err error) error {
	return &MalformedResponse{Op: op, Reason: reason, Body: truncate(body, 512), Err: err}
}

// Check returns a *ServerError when resp is not 2xx and nil otherwise.
// The body is consumed on error.
func Check(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return &ServerError{Op: op, Status: resp.StatusCode, Message: DetailMessage(b)}
}

// ReadBody reads a successful response body; a read failure mid-body counts
// as a transport error.
func ReadBody(op, url string, resp *http.Response) ([]byte, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Network(op, url, err)
	}
	return b, nil
}

// DetailMessage extracts a human-readable message from an error body.
// FastAPI sends {"detail": "..."} or {"detail": [{"msg": "..."}, ...]};
// other shapes fall back to "message", "error" and finally the raw text.
func DetailMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var env struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return truncate(body, 300)
	}
	if msg := detailText(env.Detail); msg != "" {
		return msg
	}
	if s := strings.TrimSpace(env.Message); s != "" {
		return s
	}
	if s := strings.TrimSpace(env.Error); s != "" {
		return s
	}
	return truncate(body, 300)
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, " | ")
	}
	var obj struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.Msg != "" {
			return obj.Msg
		}
		return obj.Message
	}
	return ""
}

// Message is the text a front-end shows for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *ServerError
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return fmt.Sprintf("server error %d", se.Status)
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return "the server took too long to answer"
		}
		return "cannot reach the server"
	}
	var me *MalformedResponse
	if errors.As(err, &me) {
		return "unexpected answer from the server"
	}
	return err.Error()
}

// Kind names the class of err for logs and audit rows.
func Kind(err error) string {
	var (
		ne *NetworkError
		se *ServerError
		me *MalformedResponse
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &se):
		return "server"
	case errors.As(err, &me):
		return "malformed"
	default:
		return "client"
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
