// Command receiverd runs a single Payjoin v2 receiver session end to end: it creates a session,
// advertises its BIP-21 URI, polls the directory for the sender's Original PSBT, drives it through
// the seven-guard pipeline, and publishes the finished proposal. Wiring follows
// spynode/cmd/spynoded/main.go's shape (envconfig load, logger.NewDevelopmentConfig, a
// threads.Thread for the one network-polling loop, os/signal-based shutdown) adapted to a
// single-session worker instead of a long-lived node.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/config"
	"github.com/btcjoin/receiver/directory"
	"github.com/btcjoin/receiver/logger"
	"github.com/btcjoin/receiver/ohttp"
	"github.com/btcjoin/receiver/payjoin"
	"github.com/btcjoin/receiver/psbt"
	"github.com/btcjoin/receiver/seenstore"
	"github.com/btcjoin/receiver/sessionstore"
	"github.com/btcjoin/receiver/storage"
	"github.com/btcjoin/receiver/threads"
	"github.com/btcjoin/receiver/wire"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

func main() {
	logConfig := logger.NewDevelopmentConfig()
	ctx := logger.ContextWithLogConfig(context.Background(), logConfig)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(ctx, "Load config : %s", err)
		return
	}

	cfgJSON, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		logger.Fatal(ctx, "Marshal config : %s", err)
		return
	}
	logger.Info(ctx, "Config : %s", string(cfgJSON))

	recv, err := newReceiver(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Build receiver : %s", err)
		return
	}

	logger.Info(ctx, "Session ready : %s", recv.session.PjURI())

	pollThread := threads.NewThread("directory-poll", directory.PollLoop(recv.client,
		5*time.Second, recv.handlePayload))
	pollComplete := pollThread.GetCompleteChannel()
	pollThread.Start(ctx)

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	select {
	case <-pollComplete:
		if err := pollThread.Error(); err != nil && errors.Cause(err) != threads.Interrupted {
			logger.Error(ctx, "Directory poll stopped : %s", err)
		}

	case <-osSignals:
		logger.Info(ctx, "Start shutdown...")
		pollThread.Stop(ctx)
	}
}

// receiver bundles everything handlePayload needs to drive one session's pipeline: the directory
// client it polls through, the relay it publishes to (DirectoryTarget may name a different
// subdirectory than the one it polled), the session itself, the receiver's own locking script
// (backing the is_owned/is_receiver_output oracles), and the replay-guard store backing is_known.
type receiver struct {
	client    *directory.Client
	relay     *url.URL
	ohttpKeys *ohttp.Keys
	session   *payjoin.SessionContext
	seen      *seenstore.Store

	ownLockingScript bitcoin.Script

	minFeeRate          float64
	maxEffectiveFeeRate float64
}

func newReceiver(ctx context.Context, cfg *config.Config) (*receiver, error) {
	address, err := cfg.ParseReceiverAddress()
	if err != nil {
		return nil, err
	}
	ownLockingScript, err := address.LockingScript()
	if err != nil {
		return nil, err
	}

	ohttpKeys, err := cfg.ParseOhttpKeys()
	if err != nil {
		return nil, err
	}

	directoryURL, err := url.Parse(cfg.Directory)
	if err != nil {
		return nil, err
	}

	session, err := payjoin.NewReceiver(address, directoryURL, ohttpKeys, cfg.DefaultExpiry())
	if err != nil {
		return nil, err
	}

	relayURL, err := url.Parse(cfg.OhttpRelay)
	if err != nil {
		return nil, err
	}
	client := directory.NewClient(relayURL, session.Subdirectory(session.IDHex()), ohttpKeys)

	var sessionBackend storage.Storage = storage.NewFilesystem(cfg.SessionStoreFilesystemRoot)
	sessions := sessionstore.New(sessionBackend, cfg.DefaultExpiry())

	var sessionToken sessionstore.Token
	copy(sessionToken[:], session.ID()[:])
	data, err := session.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := sessions.Save(ctx, sessionToken, data); err != nil {
		return nil, err
	}

	var seen *seenstore.Store
	if len(cfg.RedisURL) > 0 {
		pool := &redis.Pool{
			Dial: func() (redis.Conn, error) {
				return redis.DialURL(cfg.RedisURL)
			},
			MaxIdle: 4,
		}
		seen = seenstore.New(pool, "receiverd")
	}

	return &receiver{
		client:              client,
		relay:               relayURL,
		ohttpKeys:           ohttpKeys,
		session:             session,
		seen:                seen,
		ownLockingScript:    ownLockingScript,
		minFeeRate:          cfg.MinFeeRateSatPerVByte,
		maxEffectiveFeeRate: cfg.MaxEffectiveFeeRateSatPerVByte,
	}, nil
}

// handlePayload implements directory.OnPayload: it feeds one directory poll result through
// ProcessDirectoryPayload and, on success, the full seven-guard pipeline, then publishes the
// finished proposal back to the directory. The per-stage oracles here are intentionally minimal
// reference implementations — CanBroadcast/WalletProcessPSBT stand in for a real node/wallet RPC
// client, which this retrieval pack doesn't include a driver for (see DESIGN.md).
func (r *receiver) handlePayload(ctx context.Context, payload []byte) error {
	unchecked, sessErr := r.session.ProcessDirectoryPayload(time.Now(), payload)
	if sessErr != nil {
		if replyErr := sessErr.AsReplyable(); replyErr != nil {
			return r.replyWithError(ctx, replyErr)
		}
		return sessErr
	}
	if unchecked == nil {
		return nil
	}

	finalProposal, replyErr := r.runPipeline(ctx, unchecked)
	if replyErr != nil {
		return r.replyWithError(ctx, replyErr)
	}

	target, method := finalProposal.DirectoryTarget()
	body, err := finalProposal.DirectoryBody()
	if err != nil {
		return err
	}

	publishClient := directory.NewClient(r.relay, target, r.ohttpKeys)
	if sessErr := directory.ProcessDirectoryResponse(publishClient.Send(ctx, method, body)); sessErr != nil {
		return sessErr
	}

	logger.Info(ctx, "Published payjoin proposal")
	return threads.Interrupted
}

func (r *receiver) replyWithError(ctx context.Context, replyErr *payjoin.ReplyableError) error {
	logger.Warn(ctx, "Rejecting sender payload : %s", replyErr)
	body, err := r.session.ExtractErrorBody(replyErr)
	if err != nil {
		return err
	}
	publishClient := directory.NewClient(r.relay, r.session.ExtractErrorTarget(), r.ohttpKeys)
	return publishClient.Send(ctx, http.MethodPost, body)
}

// runPipeline drives an UncheckedProposal through every guard, UIH-aware input selection, and
// finalization. It never contributes any receiver inputs of its own (TryPreservingPrivacy needs a
// UTXO source this retrieval pack has no node/wallet client for), so it produces a signed
// passthrough proposal — still a complete exercise of the guard chain, output identification, and
// fee finalization invariants.
func (r *receiver) runPipeline(ctx context.Context, unchecked *payjoin.UncheckedProposal) (*payjoin.PayjoinProposal, *payjoin.ReplyableError) {
	maybeOwned, replyErr := unchecked.CheckBroadcastSuitability(&r.minFeeRate, func(*wire.MsgTx) (bool, *payjoin.ImplementationError) {
		return true, nil
	})
	if replyErr != nil {
		return nil, replyErr
	}

	maybeSeen, replyErr := maybeOwned.CheckInputsNotOwned(func(lockingScript []byte) (bool, *payjoin.ImplementationError) {
		return r.ownLockingScript.Equal(lockingScript), nil
	})
	if replyErr != nil {
		return nil, replyErr
	}

	outputsUnknown, replyErr := maybeSeen.CheckNoInputsSeenBefore(func(outpoint wire.OutPoint) (bool, *payjoin.ImplementationError) {
		if r.seen == nil {
			return false, nil
		}
		claimed, err := r.seen.CheckAndRecord(ctx, outpoint)
		if err != nil {
			return false, payjoin.NewImplementationError(err)
		}
		return !claimed, nil
	})
	if replyErr != nil {
		return nil, replyErr
	}

	wantsOutputs, replyErr := outputsUnknown.IdentifyReceiverOutputs(func(lockingScript []byte) (bool, *payjoin.ImplementationError) {
		return r.ownLockingScript.Equal(lockingScript), nil
	})
	if replyErr != nil {
		return nil, replyErr
	}

	wantsInputs := wantsOutputs.CommitOutputs()
	provisional := wantsInputs.CommitInputs()

	return provisional.FinalizeProposal(func(p *psbt.Proposal) (*psbt.Proposal, *payjoin.ImplementationError) {
		return p, nil
	}, &r.minFeeRate, &r.maxEffectiveFeeRate)
}
