package payjoin

import (
	"net/http"
	"testing"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/directory"
	"github.com/btcjoin/receiver/hpke"
	"github.com/btcjoin/receiver/ohttp"
)

func testPayjoinProposal(t *testing.T) (*SessionContext, PayjoinProposal) {
	t.Helper()

	ctx := testSession(t)
	proposal := buildSenderProposal(t, 150000, 100000, 50000)
	return ctx, PayjoinProposal{proposalBase{Ctx: ctx, Proposal: proposal, Params: Params{Version: VersionTwo}}}
}

// TestPayjoinProposal_DirectoryTarget_V2PublishesToSenderEphemeral covers the true-v2 publish
// path: the finished proposal goes to the sender's ephemeral-key subdirectory via POST.
func TestPayjoinProposal_DirectoryTarget_V2PublishesToSenderEphemeral(t *testing.T) {
	ctx, p := testPayjoinProposal(t)

	senderKey, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender key: %s", err)
	}
	senderPub := senderKey.PublicKey()
	if err := ctx.SetSenderEphemeral(senderPub); err != nil {
		t.Fatalf("set sender ephemeral: %s", err)
	}

	target, method := p.DirectoryTarget()
	if method != http.MethodPost {
		t.Errorf("got method %q, want POST", method)
	}
	want := ctx.Subdirectory(ohttp.ShortIDHex(senderPub))
	if target.String() != want.String() {
		t.Errorf("got target %s, want %s", target, want)
	}
}

// TestPayjoinProposal_DirectoryTarget_V1InV2PublishesToOwnSubdirectory covers the legacy
// v1-in-v2 path: no sender ephemeral key was ever recorded, so the proposal is PUT to the
// receiver's own subdirectory instead.
func TestPayjoinProposal_DirectoryTarget_V1InV2PublishesToOwnSubdirectory(t *testing.T) {
	ctx, p := testPayjoinProposal(t)

	target, method := p.DirectoryTarget()
	if method != http.MethodPut {
		t.Errorf("got method %q, want PUT", method)
	}
	want := ctx.Subdirectory(ctx.IDHex())
	if target.String() != want.String() {
		t.Errorf("got target %s, want %s", target, want)
	}
}

func TestPayjoinProposal_DirectoryBody_V1InV2IsPlainBase64(t *testing.T) {
	_, p := testPayjoinProposal(t)

	body, err := p.DirectoryBody()
	if err != nil {
		t.Fatalf("directory body: %s", err)
	}

	want, err := p.Proposal.Base64()
	if err != nil {
		t.Fatalf("encode proposal: %s", err)
	}
	if string(body) != want {
		t.Errorf("got %q, want plain base64 %q", body, want)
	}
}

func TestPayjoinProposal_DirectoryBody_V2IsSealedToSenderEphemeral(t *testing.T) {
	ctx, p := testPayjoinProposal(t)

	senderEphemeral, err := hpke.GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender ephemeral: %s", err)
	}
	if err := ctx.SetSenderEphemeral(senderEphemeral.Public); err != nil {
		t.Fatalf("set sender ephemeral: %s", err)
	}

	body, err := p.DirectoryBody()
	if err != nil {
		t.Fatalf("directory body: %s", err)
	}

	opened, err := hpke.OpenB(body, senderEphemeral, ctx.S.Public)
	if err != nil {
		t.Fatalf("open sealed body: %s", err)
	}

	want, err := p.Proposal.Base64()
	if err != nil {
		t.Fatalf("encode proposal: %s", err)
	}
	if string(opened) != want {
		t.Errorf("got %q, want %q", opened, want)
	}
}

func TestProcessDirectoryResponse_NilErrorIsNil(t *testing.T) {
	if sessErr := ProcessDirectoryResponse(nil); sessErr != nil {
		t.Errorf("got %v, want nil", sessErr)
	}
}

func TestProcessDirectoryResponse_HTTPErrorMapsToDirectoryResponse(t *testing.T) {
	sessErr := ProcessDirectoryResponse(directory.HTTPError{Status: http.StatusNotFound, Message: "gone"})
	if sessErr == nil {
		t.Fatal("expected a session error")
	}
	if sessErr.Kind != SessionErrorDirectoryResponse {
		t.Errorf("got kind %q, want %q", sessErr.Kind, SessionErrorDirectoryResponse)
	}
}

func TestProcessDirectoryResponse_OtherErrorMapsToOhttpEncapsulation(t *testing.T) {
	sessErr := ProcessDirectoryResponse(errTestOracle)
	if sessErr == nil {
		t.Fatal("expected a session error")
	}
	if sessErr.Kind != SessionErrorOhttpEncapsulation {
		t.Errorf("got kind %q, want %q", sessErr.Kind, SessionErrorOhttpEncapsulation)
	}
}

func TestSessionContext_ExtractErrorTarget_AlwaysOwnSubdirectory(t *testing.T) {
	ctx := testSession(t)

	senderKey, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender key: %s", err)
	}
	if err := ctx.SetSenderEphemeral(senderKey.PublicKey()); err != nil {
		t.Fatalf("set sender ephemeral: %s", err)
	}

	target := ctx.ExtractErrorTarget()
	want := ctx.Subdirectory(ctx.IDHex())
	if target.String() != want.String() {
		t.Errorf("got %s, want %s", target, want)
	}
}

func TestSessionContext_ExtractErrorBody_MarshalsJSONReply(t *testing.T) {
	ctx := testSession(t)

	replyErr := errOriginalPSBTRejected(errTestOracle)
	body, err := ctx.ExtractErrorBody(replyErr)
	if err != nil {
		t.Fatalf("extract error body: %s", err)
	}

	reply := NewJSONReply(replyErr)
	want, err := reply.Marshal()
	if err != nil {
		t.Fatalf("marshal reply: %s", err)
	}
	if string(body) != string(want) {
		t.Errorf("got %q, want %q", body, want)
	}
}
