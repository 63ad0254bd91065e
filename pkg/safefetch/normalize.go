package safefetch

import (
	"bytes"
	"io"
	"net/http"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/nghyane/safefetch/internal/json"
)

const unknownErrorText = "Unknown error"

// normalize converts a failure value caught by Wrap into a synthesized
// response. It never panics: every path degrades to the minimal
// {"message": summary} record, which contains only a plain string and
// cannot fail to serialize.
func normalize(failure any) *http.Response {
	summary := summarize(failure)

	body, ok := marshalRecord(buildRecord(failure, summary))
	if !ok {
		body, _ = marshalRecord(map[string]any{"message": summary})
	}
	return syntheticResponse(summary, body)
}

// summarize reduces a failure value to a one-line human-readable summary:
// a string failure verbatim, an error's message, a message field on an
// arbitrary value, or "Unknown error" when nothing applies. Aborts and
// timeouts are not special-cased; their summary is whatever message the
// cancellation mechanism supplies.
func summarize(failure any) string {
	if s, ok := failure.(string); ok {
		return s
	}
	if err, ok := failure.(error); ok {
		if msg := errorMessage(err); msg != "" {
			return msg
		}
		return unknownErrorText
	}
	if rec := projectFields(failure); rec != nil {
		for _, key := range []string{"message", "Message"} {
			if msg, ok := rec[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return unknownErrorText
}

// errorMessage reads err.Error() without letting a hostile implementation
// panic its way out of the normalizer.
func errorMessage(err error) (msg string) {
	if err == nil {
		return ""
	}
	defer func() { _ = recover() }()
	return err.Error()
}

// buildRecord derives the JSON-serializable record for the response body.
// String failures produce exactly {"message": s}. Error failures carry
// message and stack plus every exported field the concrete error type
// attached (code, statusCode, retryAfter, ...). Other values contribute
// their own fields, or the minimal record when they have none.
func buildRecord(failure any, summary string) map[string]any {
	if s, ok := failure.(string); ok {
		return map[string]any{"message": s}
	}
	if err, ok := failure.(error); ok {
		rec := projectFields(err)
		if rec == nil {
			rec = make(map[string]any, 2)
		}
		rec["message"] = summary
		rec["stack"] = string(debug.Stack())
		return rec
	}
	if rec := projectFields(failure); rec != nil {
		return rec
	}
	return map[string]any{"message": summary}
}

// projectFields converts the exported surface of v into a key-value record:
// exported struct fields (honoring json tags) or string-keyed map entries.
// Each individual read is guarded so one bad value cannot abort the
// projection. Returns nil when v has nothing projectable.
func projectFields(v any) (rec map[string]any) {
	defer func() { _ = recover() }()

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		rec = structFields(rv)
	case reflect.Map:
		rec = mapEntries(rv)
	}
	if len(rec) == 0 {
		return nil
	}
	return rec
}

func structFields(rv reflect.Value) map[string]any {
	t := rv.Type()
	rec := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Name
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" {
			if name == "-" {
				continue
			}
			key = name
		}
		if val, ok := safeValue(rv.Field(i)); ok {
			rec[key] = val
		}
	}
	return rec
}

func mapEntries(rv reflect.Value) map[string]any {
	if rv.Type().Key().Kind() != reflect.String {
		return nil
	}
	rec := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		if val, ok := safeValue(iter.Value()); ok {
			rec[iter.Key().String()] = val
		}
	}
	return rec
}

// safeValue extracts a field value for the record, skipping kinds that have
// no JSON representation and recovering from any panic the read provokes.
func safeValue(fv reflect.Value) (val any, ok bool) {
	defer func() {
		if recover() != nil {
			val, ok = nil, false
		}
	}()

	kind := fv.Kind()
	if kind == reflect.Interface && !fv.IsNil() {
		kind = fv.Elem().Kind()
	}
	switch kind {
	case reflect.Invalid, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, false
	}
	if !fv.CanInterface() {
		return nil, false
	}
	return fv.Interface(), true
}

// marshalRecord serializes rec, reporting failure instead of letting a
// cyclic or otherwise pathological value escape as an error or panic.
func marshalRecord(rec map[string]any) (data []byte, ok bool) {
	defer func() {
		if recover() != nil {
			data, ok = nil, false
		}
	}()

	out, err := json.Marshal(rec)
	if err != nil {
		return nil, false
	}
	return out, true
}

// syntheticResponse builds the substitute response for a failed call.
// http.Response performs no range validation on StatusCode, so the sentinel
// is set directly; the summary rides in the Status field where a real
// response would carry its status line text.
func syntheticResponse(summary string, body []byte) *http.Response {
	return &http.Response{
		Status:        summary,
		StatusCode:    StatusTransportError,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}
