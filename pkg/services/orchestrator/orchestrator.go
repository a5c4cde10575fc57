/*
2026 © Postgres.ai
*/

// Package orchestrator provides the per-request state machine driving a query through a leased session.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"
	"go.opentelemetry.io/otel/attribute"

	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/interpreter"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/observability"
	"gitlab.com/postgres-ai/hostlink/pkg/services/sessionmgr"
	"gitlab.com/postgres-ai/hostlink/pkg/storage"
	"gitlab.com/postgres-ai/hostlink/pkg/util/text"
)

// Query outcomes reported to metrics.
const (
	outcomeComplete  = "complete"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

const rawOutputPreviewSize = 200

// Result describes a completed request.
type Result struct {
	RequestID    string                   `json:"requestId"`
	SessionID    string                   `json:"sessionId"`
	Status       models.RequestStatus     `json:"status"`
	RawOutput    string                   `json:"rawOutput"`
	ParsedOutput string                   `json:"parsedOutput"`
	Captures     map[string]string        `json:"captures"`
	Transactions []models.TransactionData `json:"transactions"`
	NoData       bool                     `json:"noData"`
	Duration     time.Duration            `json:"duration"`
}

// Orchestrator runs query requests.
type Orchestrator struct {
	cfg      config.App
	store    storage.Store
	sessions *sessionmgr.Manager
	provider instruction.Provider
	metrics  *observability.Metrics
}

// New creates a new orchestrator.
func New(cfg config.App, store storage.Store, sessions *sessionmgr.Manager, provider instruction.Provider,
	metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		provider: provider,
		metrics:  metrics,
	}
}

// execution holds the state of a request between its steps.
type execution struct {
	request models.QueryRequest
	handle  *sessionmgr.Handle
	rc      *interpreter.RunContext
	result  *Result
}

// Handle runs the request to a terminal status. The session lease, if one was taken,
// is released after the status is final and before Handle returns, on every exit path.
// A panic of a collaborator is returned as an error.
func (o *Orchestrator) Handle(ctx context.Context, request models.QueryRequest) (result *Result, err error) {
	if request.RequestID == "" {
		request.RequestID = xid.New().String()
	}

	if timeout := request.Timeout(); timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, "hostlink.request",
		attribute.String("request.id", request.RequestID),
		attribute.String("request.logon_set", request.LogonInstructionSet),
		attribute.String("request.query_set", request.QueryInstructionSet),
		attribute.String("request.calling_application", request.CallingApplication),
	)

	start := time.Now()

	defer func() {
		metricsCtx := context.WithoutCancel(ctx)
		o.metrics.QueryRun(metricsCtx, request.QueryInstructionSet, outcome(err))
		o.metrics.ObserveQuery(metricsCtx, request.QueryInstructionSet, time.Since(start))
		observability.EndSpan(span, err)
	}()

	o.audit(request)

	clientRequest, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode the client request")
	}

	if err := o.store.CreateRequest(ctx, &models.RequestSession{
		RequestID:        request.RequestID,
		ClientTrackingID: request.ClientTrackingID,
		ClientRequest:    string(clientRequest),
		Status:           models.StatusStarted,
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to register request %s", request.RequestID)
	}

	exec := &execution{request: request}

	defer func() {
		if recovered := recover(); recovered != nil {
			result, err = nil, errors.Errorf("request %s panicked: %v", request.RequestID, recovered)
		}

		o.finalize(ctx, exec, err)
	}()

	if err := o.run(ctx, exec); err != nil {
		return nil, err
	}

	exec.result.Duration = time.Since(start)

	log.Msg(fmt.Sprintf("Request %s complete in %s: %s of raw output, %s", request.RequestID,
		durafmt.Parse(exec.result.Duration.Round(time.Millisecond)).String(),
		humanize.Bytes(uint64(len(exec.result.RawOutput))),
		english.Plural(len(exec.result.Transactions), "transaction", "")))

	return exec.result, nil
}

// finalize runs on every exit of a registered request: a failure is persisted first,
// then the lease is released. Both ignore the cancellation of the request context.
func (o *Orchestrator) finalize(ctx context.Context, exec *execution, err error) {
	finalCtx := context.WithoutCancel(ctx)

	if err != nil {
		o.fail(finalCtx, exec.request.RequestID, err)
	}

	if exec.handle == nil {
		return
	}

	rawOutput := ""
	if exec.rc != nil {
		rawOutput = exec.rc.RawOutput()
	}

	if releaseErr := exec.handle.Release(finalCtx, rawOutput); releaseErr != nil {
		log.Err(errors.Wrapf(releaseErr, "request %s", exec.request.RequestID))
	}
}

func (o *Orchestrator) run(ctx context.Context, exec *execution) error {
	request := exec.request

	if err := o.setStatus(ctx, request.RequestID, models.StatusInProgress); err != nil {
		return err
	}

	querySet, err := o.provider.Query(ctx, request.QueryInstructionSet)
	if err != nil {
		return errors.Wrapf(err, "failed to load query set %q", request.QueryInstructionSet)
	}

	var parseSet *instruction.ParseSet

	if request.ParseInstructionSet != "" {
		if parseSet, err = o.provider.Parse(ctx, request.ParseInstructionSet); err != nil {
			return errors.Wrapf(err, "failed to load parse set %q", request.ParseInstructionSet)
		}
	}

	handle, err := o.sessions.Acquire(ctx, request.LogonInstructionSet, request.RequestID)
	if err != nil {
		return err
	}

	exec.handle = handle

	if err := o.store.SetRequestSession(ctx, request.RequestID, handle.SessionID()); err != nil {
		return errors.Wrapf(err, "failed to bind request %s to session %s", request.RequestID, handle.SessionID())
	}

	rc := interpreter.NewRunContext(request.ParameterMap())
	rc.RequestID = request.RequestID
	rc.CallingApplication = request.CallingApplication
	rc.Tags = []string{request.LogonInstructionSet, request.QueryInstructionSet}
	exec.rc = rc

	if err := o.setStatus(ctx, request.RequestID, models.StatusInvokingMainframeQuery); err != nil {
		return err
	}

	if err := handle.Run(ctx, querySet.Actions, rc); err != nil {
		return errors.Wrapf(err, "query %q failed", querySet.Name)
	}

	log.Dbg(fmt.Sprintf("Request %s raw output: %s", request.RequestID, text.Preview(rc.RawOutput(), rawOutputPreviewSize)))

	var fields map[string]interface{}

	if parseSet != nil {
		if err := o.setStatus(ctx, request.RequestID, models.StatusParsingMainframeResponse); err != nil {
			return err
		}

		fields = ParseOutput(parseSet, rc.RawOutput())
	}

	captures := rc.Captures()

	parsed, err := parsedOutput(captures, fields)
	if err != nil {
		return err
	}

	if err := o.store.SetParsedOutput(ctx, request.RequestID, parsed); err != nil {
		return errors.Wrapf(err, "failed to store parsed output of request %s", request.RequestID)
	}

	transactions := rc.Transactions()

	if len(transactions) > 0 {
		if err := o.store.AddTransactions(ctx, transactions); err != nil {
			return errors.Wrapf(err, "failed to store transactions of request %s", request.RequestID)
		}
	}

	if err := o.setStatus(ctx, request.RequestID, models.StatusComplete); err != nil {
		return err
	}

	exec.result = &Result{
		RequestID:    request.RequestID,
		SessionID:    handle.SessionID(),
		Status:       models.StatusComplete,
		RawOutput:    rc.RawOutput(),
		ParsedOutput: parsed,
		Captures:     captures,
		Transactions: transactions,
		NoData:       rc.NoData(),
	}

	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	if err := o.store.UpdateRequestStatus(ctx, requestID, status); err != nil {
		return errors.Wrapf(err, "failed to set status %s of request %s", status, requestID)
	}

	log.Dbg(fmt.Sprintf("Request %s: %s", requestID, status))

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, requestID string, cause error) {
	log.Err(fmt.Sprintf("Request %s failed: %v", requestID, cause))

	if err := o.store.UpdateRequestStatus(ctx, requestID, models.StatusFailed); err != nil {
		log.Err(errors.Wrapf(err, "failed to mark request %s as failed", requestID))
	}
}

func (o *Orchestrator) audit(request models.QueryRequest) {
	if !o.cfg.AuditEnabled {
		return
	}

	audit, err := json.Marshal(models.Audit{
		RequestID:           request.RequestID,
		ClientTrackingID:    request.ClientTrackingID,
		CallingApplication:  request.CallingApplication,
		LogonInstructionSet: request.LogonInstructionSet,
		QueryInstructionSet: request.QueryInstructionSet,
		ParseInstructionSet: request.ParseInstructionSet,
	})
	if err != nil {
		log.Err(errors.Wrap(err, "failed to marshal Audit struct"))
		return
	}

	log.Audit(string(audit))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeComplete
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return outcomeCancelled
	default:
		return outcomeFailed
	}
}
