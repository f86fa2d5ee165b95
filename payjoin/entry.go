package payjoin

import (
	"time"
	"unicode/utf8"

	"github.com/btcjoin/receiver/hpke"
	"github.com/btcjoin/receiver/psbt"

	"github.com/pkg/errors"
)

// ProcessDirectoryPayload consumes one payload recovered from the directory — the body
// directory.Client.Get already OHTTP-decapsulated — and, once a usable Original PSBT is found,
// returns the entry point into the seven-guard pipeline. A nil proposal with a nil error means
// "keep polling"; the caller hasn't received anything from the sender yet.
//
// A payload that decodes as valid UTF-8 is a v1-style plaintext body; anything else is treated
// as an HPKE-sealed v2 payload and opened with the session's long-term keypair (spec.md design
// note "binary vs text discrimination": HPKE ciphertext is close enough to uniformly random
// bytes that the UTF-8 test reliably tells the two apart in practice).
func (ctx *SessionContext) ProcessDirectoryPayload(now time.Time, payload []byte) (*UncheckedProposal, *SessionError) {
	if err := ctx.CheckExpiry(now); err != nil {
		return nil, err.(*SessionError)
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var raw []byte
	if utf8.Valid(payload) {
		raw = payload
	} else {
		body, e, err := hpke.OpenA(payload, ctx.S)
		if err != nil {
			return nil, &SessionError{Kind: SessionErrorPayload,
				cause: errOriginalPSBTInvalid(errors.Wrap(err, "open sealed payload"))}
		}
		if err := ctx.SetSenderEphemeral(e); err != nil {
			return nil, &SessionError{Kind: SessionErrorPayload, cause: errOriginalPSBTInvalid(err)}
		}
		raw = body
	}

	proposal, replyErr := parseProposal(ctx, raw)
	if replyErr != nil {
		// A malformed or unsupported sender payload is the sender's fault, not the session's;
		// the caller is expected to deliver replyErr to the sender via extract_err_req rather
		// than treat it as a SessionError. Wrap it so ProcessDirectoryPayload keeps one return
		// shape while still letting the caller recover the original ReplyableError.
		return nil, &SessionError{Kind: SessionErrorPayload, cause: replyErr}
	}

	return proposal, nil
}

// SessionErrorPayload tags a SessionError wrapping a *ReplyableError recovered while parsing the
// sender's payload, so callers can unwrap it back out with AsReplyable and deliver it via
// extract_err_req instead of treating the session itself as broken.
const SessionErrorPayload = "payload"

// AsReplyable recovers the wrapped *ReplyableError from a SessionError of kind
// SessionErrorPayload, or nil if e does not wrap one.
func (e *SessionError) AsReplyable() *ReplyableError {
	if e.Kind != SessionErrorPayload {
		return nil
	}
	replyable, _ := e.cause.(*ReplyableError)
	return replyable
}

func parseProposal(ctx *SessionContext, raw []byte) (*UncheckedProposal, *ReplyableError) {
	psbtBase64, query := ParsePayload(raw)

	params, err := ParseParams(query)
	if err != nil {
		if IsUnsupportedVersion(err) {
			return nil, errVersionUnsupported(err)
		}
		return nil, errOriginalPSBTInvalid(err)
	}

	// spec.md invariant 2: a v1 payload surfacing inside a v2 session can never carry an
	// authentic output_substitution permission — an untrusted directory could have substituted
	// a plaintext v1 body in flight. Disable it unconditionally, regardless of what the sender
	// declared.
	if params.Version == VersionOne {
		params.OutputSubstitution = OutputSubstitutionDisabled
	}

	proposal, err := psbt.FromBase64(psbtBase64)
	if err != nil {
		return nil, errOriginalPSBTInvalid(errors.Wrap(err, "parse original psbt"))
	}

	return &UncheckedProposal{proposalBase{Ctx: ctx, Proposal: proposal, Params: params}}, nil
}
