package payjoin

import (
	"net/http"
	"net/url"

	"github.com/btcjoin/receiver/directory"
	"github.com/btcjoin/receiver/hpke"
	"github.com/btcjoin/receiver/ohttp"

	"github.com/pkg/errors"
)

// DirectoryTarget returns the subdirectory URL and HTTP method the finished proposal must be
// delivered to. A true v2 session (ctx.E set) publishes to the sender's ephemeral-key
// subdirectory via POST; a v1 payload that arrived inside a v2 session (ctx.E never set) falls
// back to the legacy v1-in-v2 publish path, PUT to the receiver's own subdirectory.
func (p PayjoinProposal) DirectoryTarget() (target *url.URL, method string) {
	if p.Ctx.E != nil {
		return p.Ctx.Subdirectory(ohttp.ShortIDHex(*p.Ctx.E)), http.MethodPost
	}
	return p.Ctx.Subdirectory(p.Ctx.IDHex()), http.MethodPut
}

// DirectoryBody renders the body to deliver to DirectoryTarget. For a true v2 session this is
// the finished PSBT, HPKE-sealed to the sender's ephemeral key; for v1-in-v2 it is the PSBT as
// plain base64 text, matching the legacy BIP-78 wire format.
func (p PayjoinProposal) DirectoryBody() ([]byte, error) {
	encoded, err := p.Proposal.Base64()
	if err != nil {
		return nil, errors.Wrap(err, "encode proposal")
	}

	if p.Ctx.E == nil {
		return []byte(encoded), nil
	}

	sealed, err := hpke.SealB([]byte(encoded), p.Ctx.S, *p.Ctx.E)
	if err != nil {
		return nil, errors.Wrap(err, "seal proposal")
	}
	return sealed, nil
}

// ProcessDirectoryResponse confirms the directory's HTTP status after DirectoryBody was posted;
// directory.Client.Post already turns a non-2xx status into an error, so this exists to give the
// caller the SessionError type spec.md's process_res names rather than a bare error value.
func ProcessDirectoryResponse(err error) *SessionError {
	if err == nil {
		return nil
	}

	if httpErr, ok := errors.Cause(err).(directory.HTTPError); ok {
		return errDirectoryResponse(httpErr.Status)
	}

	return errOhttpEncapsulation(err)
}

// ExtractErrorTarget returns the subdirectory to publish a JSON error reply to (extract_err_req).
// Unlike the finished proposal, the error reply always goes to the receiver's own subdirectory,
// not the sender's ephemeral one, since the sender polls there regardless of which protocol
// version it used.
func (ctx *SessionContext) ExtractErrorTarget() *url.URL {
	return ctx.Subdirectory(ctx.IDHex())
}

// ExtractErrorBody marshals err as the JSON body ExtractErrorTarget expects.
func (ctx *SessionContext) ExtractErrorBody(err *ReplyableError) ([]byte, error) {
	reply := NewJSONReply(err)
	body, marshalErr := reply.Marshal()
	if marshalErr != nil {
		return nil, errors.Wrap(marshalErr, "marshal json reply")
	}
	return body, nil
}

