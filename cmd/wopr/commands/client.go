package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

// httpClient is shared across commands so a single timeout and transport
// apply everywhere; the CLI is a thin client and never needs connection
// pooling tuning beyond Go's defaults.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// connectBackoff governs retries of the initial connection only (the
// daemon may still be coming up right after `woprd` was started); it
// never retries a request that reached the daemon and got an HTTP error
// back, since those are not transient.
func connectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

// apiError mirrors the daemon's uniform JSON error envelope.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// request issues an HTTP call against the daemon and decodes a successful
// JSON response into out (if non-nil). A non-2xx response is surfaced as
// an error carrying the daemon's code/message; a transport failure is
// surfaced as a distinct "daemon unreachable" error so callers/exit codes
// can tell the two apart if they need to.
func request(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	respBody, status, err := doRequest(method, path, reqBody)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("daemon returned %d: %s", status, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// requestRaw behaves like request but returns the raw successful response
// body instead of decoding it, so callers can run a --query filter over
// exactly what the daemon sent.
func requestRaw(method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	respBody, status, err := doRequest(method, path, reqBody)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("daemon returned %d: %s", status, string(respBody))
	}
	return respBody, nil
}

// doRequest issues a single HTTP call, retrying the connection attempt
// itself (not the round trip) with connectBackoff so a CLI invocation right
// after `woprd` starts doesn't fail on a daemon that isn't listening yet.
func doRequest(method, path string, reqBody io.Reader) ([]byte, int, error) {
	var buf []byte
	if reqBody != nil {
		var err error
		buf, err = io.ReadAll(reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("buffer request body: %w", err)
		}
	}

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequest(method, daemonAddr+path, bytes.NewReader(buf))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if buf != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		r, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(op, connectBackoff()); err != nil {
		return nil, 0, fmt.Errorf("daemon unreachable at %s: %w", daemonAddr, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}

// printResult prints a raw daemon response, applying --query as a gjson
// path expression when set, otherwise pretty-printing the JSON as-is.
func printResult(raw []byte) {
	if queryFlag != "" {
		fmt.Println(gjson.GetBytes(raw, queryFlag).String())
		return
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(string(data))
}
