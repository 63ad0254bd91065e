package safefetch

import (
	"errors"
	"io"
	"net/http"

	"github.com/nghyane/safefetch/internal/json"
)

// ReadText drains the response body, closes it, and returns it as a string.
// For synthesized failure responses this is the JSON error record.
func ReadText(resp *http.Response) (string, error) {
	if resp == nil || resp.Body == nil {
		return "", errors.New("safefetch: response has no body")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeJSON decodes the response body into v and closes it.
func DecodeJSON(resp *http.Response, v any) error {
	if resp == nil || resp.Body == nil {
		return errors.New("safefetch: response has no body")
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(v)
}
