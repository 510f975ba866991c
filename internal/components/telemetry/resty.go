package telemetry

import (
	"context"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

const (
	report_http_send    = "http.send"
	report_http_receive = "http.receive"
)

type exchangeKey struct{}

func exchangeID(req *resty.Request) uint64 {
	id, _ := req.Context().Value(exchangeKey{}).(uint64)
	return id
}

// InstrumentResty numbers every request made by client and reports it with its status
// and round trip time at debug level. Transport failures are broken.
func InstrumentResty(client *resty.Client, tel API) {
	var counter atomic.Uint64

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		id := counter.Add(1)
		req.SetContext(context.WithValue(req.Context(), exchangeKey{}, id))
		tel.ReportDebug(report_http_send, id, req.Method, req.URL)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		tel.ReportDebug(report_http_receive, exchangeID(res.Request), res.Status(), res.Time().String())
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		// id is 0 when an earlier before-request hook failed
		tel.ReportBroken(report_http_receive, err, req.Method, req.URL, exchangeID(req))
	})
}
