// Package agentclient is the reference implementation of the §6.1 agent
// command source and the §6.4 metrics sink. Both ride on
// github.com/valyala/fasthttp, a teacher (go.mod) direct dependency with
// no other home in this module's domain — a JSON-over-HTTP agent
// transport is the simplest concrete rendering of "ordered stream of
// commands" / "single sink receives batches of rows" that §6 leaves
// unspecified as wire bytes. Neither conn, multipoint, bridge nor
// manager import this package: cmd/mediaproxy wires a Client in as a
// concrete CommandSource/telemetry.ReportSink, but the core only ever
// depends on those interfaces.
package agentclient

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/config"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CommandKind discriminates the two agent commands the core acts on,
// §6.1.
type CommandKind string

const (
	CommandApplyConfig CommandKind = "apply_config"
	CommandDebug       CommandKind = "debug"
)

// Command is one decoded entry of the agent's command stream.
type Command struct {
	ID     string        `json:"id"`
	Kind   CommandKind   `json:"kind"`
	Config *config.Config `json:"config,omitempty"`
	Debug  string        `json:"debug,omitempty"`
}

// pollOutcome is what the long-poll endpoint reports when it has
// nothing new to deliver, distinguishing "this registration no longer
// exists" from "the stream itself was torn down", §6.1.
type pollOutcome string

const (
	outcomeOK        pollOutcome = "ok"
	outcomeNotFound  pollOutcome = "not_found"
	outcomeCancelled pollOutcome = "cancelled"
)

type pollResponse struct {
	Outcome  pollOutcome `json:"outcome"`
	Commands []Command   `json:"commands"`
}

// Client is both a command source and a telemetry.ReportSink, talking
// to a single agent endpoint over HTTP.
type Client struct {
	http    *fasthttp.Client
	baseURL string

	registrationID string
}

// NewClient builds a Client against baseURL (e.g. "http://127.0.0.1:8990").
func NewClient(baseURL string) *Client {
	return &Client{
		http:    &fasthttp.Client{Name: "mediaproxy-agentclient"},
		baseURL: baseURL,
	}
}

// Register (re-)registers this core instance with the agent, obtaining
// a fresh registration id used by subsequent Poll calls. Called once up
// front and again whenever Poll reports outcomeNotFound, §6.1 "the core
// must re-register with the agent and resume".
func (c *Client) Register(ctx *concurrency.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/register")
	req.Header.SetMethod(fasthttp.MethodPost)

	if err := c.do(ctx, req, resp); err != nil {
		return errors.Wrap(err, "register")
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return errors.Errorf("register: unexpected status %d", resp.StatusCode())
	}

	var body struct {
		RegistrationID string `json:"registration_id"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return errors.Wrap(err, "decode register response")
	}
	c.registrationID = body.RegistrationID
	return nil
}

// Ack acknowledges receipt of a command. §6.1 requires the core to
// acknowledge ApplyConfig *before* applying it, so the acknowledgement
// round trip can never be made to wait on the reconciler's locks.
func (c *Client) Ack(ctx *concurrency.Context, commandID string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/commands/" + commandID + "/ack")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("X-Registration-ID", c.registrationID)

	if err := c.do(ctx, req, resp); err != nil {
		return errors.Wrap(err, "ack")
	}
	return nil
}

// Stream polls the agent for commands until ctx is cancelled, invoking
// handle for each one in order. handle's own error is logged, not
// propagated — one bad command must not end the stream. On a
// not_found outcome, Stream re-registers and resumes; on cancelled (the
// agent's own, not ctx's), Stream returns nil, §6.1.
func (c *Client) Stream(ctx *concurrency.Context, handle func(Command) error) error {
	if c.registrationID == "" {
		if err := c.Register(ctx); err != nil {
			return err
		}
	}

	for {
		if ctx.Cancelled() {
			return nil
		}

		resp, err := c.poll(ctx)
		if err != nil {
			xlog.Warningf("agent poll failed, retrying: %v", err)
			if !concurrency.Sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		switch resp.Outcome {
		case outcomeCancelled:
			xlog.Infof("agent command stream cancelled")
			return nil
		case outcomeNotFound:
			xlog.Warningf("agent registration lost, re-registering")
			if err := c.Register(ctx); err != nil {
				return err
			}
			continue
		}

		for _, cmd := range resp.Commands {
			if err := handle(cmd); err != nil {
				xlog.Errorf("handle command %q: %v", cmd.ID, err)
			}
		}
	}
}

// poll issues a single long-poll request and decodes its response.
func (c *Client) poll(ctx *concurrency.Context) (*pollResponse, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/commands/poll")
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Registration-ID", c.registrationID)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() == fasthttp.StatusNotFound {
		return &pollResponse{Outcome: outcomeNotFound}, nil
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, errors.Errorf("poll: unexpected status %d", resp.StatusCode())
	}

	var out pollResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, errors.Wrap(err, "decode poll response")
	}
	if out.Outcome == "" {
		out.Outcome = outcomeOK
	}
	return &out, nil
}

// metricsRow is the §6.4 wire shape: a provider id, a timestamp, and
// named fields flattened to plain JSON values (the core's own
// telemetry.MetricField keeps kind and value in separate typed slots;
// the wire form only needs whichever one is populated).
type metricsRow struct {
	ProviderID  string         `json:"provider_id"`
	TimestampMS int64          `json:"timestamp_ms"`
	Fields      map[string]any `json:"fields"`
}

// Report implements telemetry.ReportSink, POSTing the batch as JSON.
// Errors are logged, not returned: a dropped metrics batch must never
// back-pressure the collector's 1000 ms cycle, §4.10.
func (c *Client) Report(batch []telemetry.Metric) {
	if len(batch) == 0 {
		return
	}

	rows := make([]metricsRow, 0, len(batch))
	for _, m := range batch {
		row := metricsRow{ProviderID: m.ProviderID, TimestampMS: m.TimestampMS, Fields: map[string]any{}}
		for _, f := range m.Fields {
			switch f.Kind {
			case telemetry.FieldString:
				row.Fields[f.Name] = f.StringValue
			case telemetry.FieldUint64:
				row.Fields[f.Name] = f.Uint64Value
			case telemetry.FieldFloat64:
				row.Fields[f.Name] = f.FloatValue
			case telemetry.FieldBool:
				row.Fields[f.Name] = f.BoolValue
			}
		}
		rows = append(rows, row)
	}

	body, err := json.Marshal(rows)
	if err != nil {
		xlog.Errorf("marshal metrics batch: %v", err)
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/metrics")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.http.DoTimeout(req, resp, 5*time.Second); err != nil {
		xlog.Errorf("report metrics batch: %v", err)
	}
}

// do runs req through the fasthttp client with a fixed timeout,
// failing fast if ctx is already cancelled.
func (c *Client) do(ctx *concurrency.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if ctx.Cancelled() {
		return errors.New("context cancelled")
	}
	return c.http.DoTimeout(req, resp, 5*time.Second)
}
