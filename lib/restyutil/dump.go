// Package restyutil writes full HTTP exchanges of a resty client somewhere a human can
// read them, which is the fastest way to see what a provider actually answered.
package restyutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

// Output receives one formatted exchange per request.
type Output interface {
	Write(id string, contents string)
}

type dumper struct {
	name    string
	output  Output
	counter *uint64
}

// DumpExchanges registers hooks on client that write every exchange to output, prefixed
// with name. A nil output is a no-op.
func DumpExchanges(client *resty.Client, name string, output Output) {
	if output == nil {
		return
	}
	var counter uint64
	d := dumper{name: name, output: output, counter: &counter}
	client.OnAfterResponse(d.onAfterResponse)
	client.OnError(d.onError)
}

func (d dumper) id(method string) string {
	n := atomic.AddUint64(d.counter, 1)
	return fmt.Sprintf(
		"%s-%s-%03d-%s.txt",
		time.Now().Format("20060102T150405"),
		d.name,
		n,
		strings.ToLower(method),
	)
}

func (d dumper) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	d.output.Write(d.id(res.Request.Method), formatExchange(res))
	return nil
}

func (d dumper) onError(req *resty.Request, err error) {
	d.output.Write(
		d.id(req.Method),
		formatRequest(req)+fmt.Sprintf("\n\n---- ERROR ----\n\n%s", err.Error()),
	)
}
