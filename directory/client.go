// Package directory is the HTTP leg that carries OHTTP-encapsulated requests from the receiver,
// through a relay, to the store-and-forward directory the sender also talks to. The directory
// itself is untrusted: it never sees the receiver's real network origin, and the relay never
// sees which directory it is fronting. The outbound transport idiom (explicit dial/TLS-handshake
// timeouts, an overall client timeout, context-scoped requests) follows
// tokenized-pkg/peer_channels/http.go's postWithToken.
package directory

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/btcjoin/receiver/ohttp"

	"github.com/pkg/errors"
)

// HTTPError mirrors the relay/directory's HTTP status back to the caller when the envelope
// round-trip itself succeeds but the outer transport rejects the request.
type HTTPError struct {
	Status  int
	Message string
}

func (err HTTPError) Error() string {
	if len(err.Message) > 0 {
		return fmt.Sprintf("HTTP Status %d : %s", err.Status, err.Message)
	}

	return fmt.Sprintf("HTTP Status %d", err.Status)
}

// Client sends OHTTP-encapsulated requests to a directory through a relay.
type Client struct {
	relay     *url.URL
	directory *url.URL
	keys      *ohttp.Keys
}

// NewClient builds a directory client for a specific session's subdirectory. directory should
// already include the session's subdirectory path (e.g. .../abcd1234...).
func NewClient(relay, directory *url.URL, keys *ohttp.Keys) *Client {
	return &Client{relay: relay, directory: directory, keys: keys}
}

// Get issues a GET against the directory (e.g. to poll for a sender's request or a response) and
// returns the recovered payload, or nil if nothing is available yet.
func (c *Client) Get(ctx context.Context) ([]byte, error) {
	return c.roundTrip(ctx, http.MethodGet, nil)
}

// Post writes body to the directory (e.g. the receiver's own request, or its finished proposal)
// and confirms the write was accepted.
func (c *Client) Post(ctx context.Context, body []byte) error {
	_, err := c.roundTrip(ctx, http.MethodPost, body)
	return err
}

// Send writes body to the directory using an explicit HTTP method, for callers that must follow
// a method chosen at runtime rather than always POST (payjoin.PayjoinProposal.DirectoryTarget
// returns PUT for the legacy v1-in-v2 publish path, POST for a true v2 session).
func (c *Client) Send(ctx context.Context, method string, body []byte) error {
	_, err := c.roundTrip(ctx, method, body)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method string, body []byte) ([]byte, error) {
	envelope, respCtx, err := ohttp.Encapsulate(c.keys, method, c.directory.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "encapsulate")
	}

	target, err := ohttp.FullRelayURL(c.relay, c.directory)
	if err != nil {
		return nil, errors.Wrap(err, "relay url")
	}

	responseEnvelope, err := postEnvelope(ctx, target.String(), envelope)
	if err != nil {
		return nil, errors.Wrap(err, "post envelope")
	}

	if method == http.MethodGet {
		payload, err := ohttp.ProcessGetResponse(responseEnvelope, respCtx)
		if err != nil {
			return nil, errors.Wrap(err, "process response")
		}
		return payload, nil
	}

	if err := ohttp.ProcessPostResponse(responseEnvelope, respCtx); err != nil {
		return nil, errors.Wrap(err, "process response")
	}

	return nil, nil
}

// postEnvelope sends a fixed-size OHTTP envelope to the relay and returns the relay's own
// fixed-size response envelope.
func postEnvelope(ctx context.Context, url string, envelope []byte) ([]byte, error) {
	transport := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 5 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: transport,
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(envelope))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	httpRequest.Header.Set("Content-Type", "message/ohttp-req")
	httpRequest.Header.Set("Accept", "message/ohttp-res")

	httpResponse, err := client.Do(httpRequest)
	if err != nil {
		return nil, errors.Wrap(err, "http post")
	}
	defer httpResponse.Body.Close()

	responseBody, err := ioutil.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return nil, HTTPError{Status: httpResponse.StatusCode, Message: string(responseBody)}
	}

	if len(responseBody) != ohttp.EncapsulatedMessageBytes {
		return nil, errors.Errorf("unexpected response envelope size %d", len(responseBody))
	}

	return responseBody, nil
}
