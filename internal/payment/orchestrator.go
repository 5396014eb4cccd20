// Package payment runs the payment triggered by a client writing its
// address to a merchant's write characteristic: look up the client's
// funds on the ledger, pay the merchant from the first funding output and
// notify merchant sessions of the outcome.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"github.com/hydraterm/hydraterm/internal/amount"
	"github.com/hydraterm/hydraterm/internal/apperr"
	"github.com/hydraterm/hydraterm/internal/gatt"
	"github.com/hydraterm/hydraterm/internal/ledger"
	"github.com/hydraterm/hydraterm/internal/notify"
	"github.com/hydraterm/hydraterm/terminal/models"
)

// Ledger is the remote ledger as seen by a payment run.
type Ledger interface {
	QueryFunds(ctx context.Context, address string) (*ledger.FundsResponse, error)
	PayMerchant(ctx context.Context, pr ledger.PayRequest) (json.RawMessage, error)
}

type Notifier interface {
	Publish(ev notify.Event) int
}

type Config struct {
	// CallTimeout bounds each ledger call. Zero disables the bound.
	CallTimeout time.Duration
	// NativeDecimals is used to settle requests that carry no decimals.
	NativeDecimals int
}

func DefaultConfig() Config {
	return Config{
		CallTimeout:    10 * time.Second,
		NativeDecimals: amount.NativeDecimals,
	}
}

// Orchestrator starts one independent run per accepted write. It keeps no
// state between runs apart from the group used to wait for them.
type Orchestrator struct {
	ledger   Ledger
	notifier Notifier
	cfg      Config
	logger   *slog.Logger

	// mu orders runs.Go against Close so no run starts once Wait is under way.
	mu     sync.Mutex
	closed bool
	runs   errgroup.Group
}

func New(logger *slog.Logger, l Ledger, n Notifier, cfg Config) *Orchestrator {
	return &Orchestrator{
		ledger:   l,
		notifier: n,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "payment")),
	}
}

// Bind returns the write handler for a characteristic set built from req on
// behalf of the merchant session sessionID.
func (o *Orchestrator) Bind(sessionID string, req models.MerchantRequest) gatt.WriteFunc {
	req = req.Clone()
	return func(data []byte, offset int, withoutResponse bool) gatt.Result {
		return o.HandleWrite(sessionID, req, data)
	}
}

// HandleWrite acknowledges a client write. Valid input is accepted right
// away and paid for in the background; the result code does not tell the
// client whether the payment went through.
func (o *Orchestrator) HandleWrite(sessionID string, req models.MerchantRequest, data []byte) gatt.Result {
	if !utf8.Valid(data) {
		o.logger.Error("rejecting client write",
			slog.String("kind", apperr.Kind(apperr.ErrMalformedInput)),
			slog.String("session", sessionID),
			slog.Int("bytes", len(data)))
		return gatt.ResultUnlikelyError
	}
	clientAddress := string(data)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.logger.Warn("rejecting client write after shutdown",
			slog.String("session", sessionID),
			slog.String("client", clientAddress))
		return gatt.ResultUnlikelyError
	}
	o.logger.Info("client wrote address",
		slog.String("session", sessionID),
		slog.String("client", clientAddress))

	o.runs.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				o.logger.Error("payment run panicked", slog.String("session", sessionID), slog.Any("panic", p))
			}
		}()
		// failures are logged by Run; nobody is waiting for the result
		o.Run(context.Background(), sessionID, req, clientAddress)
		return nil
	})
	return gatt.ResultSuccess
}

// Wait blocks until every run started so far has finished.
func (o *Orchestrator) Wait() {
	o.runs.Wait()
}

// Close stops accepting writes and waits for the runs already started.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.Wait()
}

type run struct {
	id        string
	sessionID string
	req       models.MerchantRequest
	client    string
	state     State
	logger    *slog.Logger
}

func (r *run) enter(s State) {
	r.logger.Debug("state", slog.String("from", r.state.String()), slog.String("to", s.String()))
	r.state = s
}

// Run executes the state machine for one client address and returns the
// outcome that was published. Errors are logged before being returned.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, req models.MerchantRequest, clientAddress string) (*models.PaymentOutcome, error) {
	r := &run{
		id:        uuid.NewString(),
		sessionID: sessionID,
		req:       req,
		client:    clientAddress,
		state:     StateIdle,
	}
	r.logger = o.logger.With(
		slog.String("run", r.id),
		slog.String("session", sessionID),
		slog.String("client", clientAddress),
		slog.String("merchant", req.Address))

	outcome, err := o.execute(ctx, r)
	if err != nil {
		failedIn := r.state
		r.enter(StateErrored)
		r.logger.Error("payment run failed",
			slog.String("state", failedIn.String()),
			slog.String("kind", apperr.Kind(err)),
			"err", err)
		return nil, err
	}
	r.enter(StateDone)
	return outcome, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (*models.PaymentOutcome, error) {
	r.enter(StateValidating)
	if !utf8.ValidString(r.client) {
		return nil, fmt.Errorf("client address: %w", apperr.ErrMalformedInput)
	}

	r.enter(StateQueryingFunds)
	funds, err := o.queryFunds(ctx, r.client)
	if err != nil {
		return nil, fmt.Errorf("%w: query-funds for %s: %w", apperr.ErrRemoteQuery, r.client, err)
	}
	r.logger.Info("funds queried", slog.Int("funds", len(funds.FundsInL2)))

	r.enter(StateSelectingFunding)
	if len(funds.FundsInL2) == 0 {
		return nil, fmt.Errorf("client %s: %w", r.client, apperr.ErrNoFunds)
	}
	funding := funds.FundsInL2[0]

	decimals := o.cfg.NativeDecimals
	if r.req.Decimals != nil {
		decimals = *r.req.Decimals
	}
	minor, err := amount.Encode(r.req.Amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
	}
	// what the ledger will actually move, after truncation to minor units
	charged, err := amount.Decode(minor, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
	}
	pr := ledger.PayRequest{
		ClientAddress:   r.client,
		MerchantAddress: r.req.Address,
		Amount:          r.req.Amount,
		Decimals:        decimals,
		Funding:         funding,
		AssetUnit:       r.req.AssetUnit,
	}

	r.enter(StatePaying)
	r.logger.Info("paying merchant",
		slog.String("amount", r.req.Amount.String()),
		slog.Int("decimals", decimals),
		slog.Int64("minor_units", minor),
		slog.String("charged", charged.String()),
		slog.String("asset_unit", r.req.AssetUnit),
		slog.String("tx_hash", funding.TxHash),
		slog.Int("output_index", funding.OutputIndex))
	result, err := o.payMerchant(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("%w: pay-merchant %s from %s#%d: %w",
			apperr.ErrRemotePayment, r.req.Address, funding.TxHash, funding.OutputIndex, err)
	}
	r.logger.Info("merchant paid", slog.String("result", string(result)))

	r.enter(StateNotifying)
	outcome := &models.PaymentOutcome{
		ClientAddress:   r.client,
		MerchantAddress: r.req.Address,
		Amount:          r.req.Amount,
		LedgerResult:    result,
	}
	o.notifier.Publish(notify.Event{
		Name:      notify.EventPayed,
		SessionID: r.sessionID,
		Payload:   *outcome,
	})
	return outcome, nil
}

func (o *Orchestrator) queryFunds(ctx context.Context, address string) (*ledger.FundsResponse, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()
	return o.ledger.QueryFunds(ctx, address)
}

func (o *Orchestrator) payMerchant(ctx context.Context, pr ledger.PayRequest) (json.RawMessage, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()
	return o.ledger.PayMerchant(ctx, pr)
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.CallTimeout)
}
