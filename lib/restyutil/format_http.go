package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

// headers whose values are credentials, they are never written to a dump.
var redactedHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
	"set-cookie":    true,
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		for _, v := range headers[k] {
			if redactedHeaders[strings.ToLower(k)] {
				v = "<redacted>"
			}
			out = append(out, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(out, "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
const requestTemplate = `---- REQUEST ----

%s %s

%s

%s`

// 1: response status
// 2: response headers in ("Key: Value" format)
// 3: response body
const responseTemplate = `

---- RESPONSE ----

%s

%s

%s`

func formatRequest(req *resty.Request) string {
	var headers http.Header
	if req.RawRequest != nil {
		headers = req.RawRequest.Header
	} else {
		headers = req.Header
	}
	return fmt.Sprintf(
		requestTemplate,
		req.Method, req.URL,
		formatHeaders(headers),
		formatRequestBody(req.RawRequest),
	)
}

func formatExchange(res *resty.Response) string {
	return formatRequest(res.Request) + fmt.Sprintf(
		responseTemplate,
		res.Status(),
		formatHeaders(res.Header()),
		res.String(),
	)
}
