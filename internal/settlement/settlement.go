// Package settlement applies the consequence of an admitted action once the
// action's own write has succeeded.
package settlement

import (
	"context"
	"fmt"
	"time"

	"mijob/internal/gate"
	"mijob/internal/ledger"
	"mijob/internal/logger"
	"mijob/internal/metrics"
	"mijob/internal/quota"
)

const settleTimeout = 5 * time.Second

// Debiter is satisfied by ledger.Service.
type Debiter interface {
	Debit(ctx context.Context, userID int, amount int64, reason string, link ledger.Link, meta ledger.Metadata) (*ledger.Transaction, error)
}

// Notifier is the email collaborator. Calls are best effort.
type Notifier interface {
	SendLowBalance(ctx context.Context, to, name string, balance int64) error
	SendLimitReached(ctx context.Context, to, name, action string, limit int) error
}

// Ref identifies the record the admitted action created.
type Ref struct {
	MissionID      *int
	ConversationID *int
}

type Result struct {
	Settled     bool                `json:"settled"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
	Warning     string              `json:"warning,omitempty"`
}

type Settler struct {
	debits     Debiter
	notify     Notifier
	lowBalance int64
}

func New(debits Debiter, notify Notifier, lowBalance int64) *Settler {
	return &Settler{debits: debits, notify: notify, lowBalance: lowBalance}
}

// Settle never fails the caller. A debit that cannot be recorded comes back
// as Result.Warning and the guarded record stays in place.
func (s *Settler) Settle(ctx context.Context, d *gate.Decision, ref Ref) Result {
	if d == nil {
		return Result{}
	}
	// The guarded write already happened, so a client disconnect must not
	// cancel the debit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	switch d.Policy {
	case gate.PolicySubscription:
		s.afterQuotaUse(ctx, d)
		return Result{Settled: true}
	case gate.PolicyBalance:
		return s.debit(ctx, d, ref)
	default:
		return Result{Warning: fmt.Sprintf("unknown settlement policy %q", d.Policy)}
	}
}

func (s *Settler) debit(ctx context.Context, d *gate.Decision, ref Ref) Result {
	if d.Tokens == nil || d.Tokens.Required <= 0 {
		return Result{Settled: true}
	}

	meta := ledger.Metadata{"action": string(d.Action), "base": d.Tokens.Breakdown.Base}
	if d.Tokens.Breakdown.Featured > 0 {
		meta["featured"] = d.Tokens.Breakdown.Featured
	}

	tx, err := s.debits.Debit(ctx, d.AccountID, d.Tokens.Required, reason(d), ledger.Link{
		MissionID:      ref.MissionID,
		ConversationID: ref.ConversationID,
	}, meta)
	if err != nil {
		metrics.RecordSettlementFailure(string(d.Action))
		logger.WithError(err).
			WithField("action", d.Action).
			WithField("amount", d.Tokens.Required).
			WithField("user_id", d.AccountID).
			Error("settlement debit failed")
		return Result{Warning: "Your " + string(d.Action) + " was created but the token charge could not be recorded"}
	}

	if s.notify != nil && tx.BalanceAfter < s.lowBalance {
		if err := s.notify.SendLowBalance(ctx, d.Email, d.Name, tx.BalanceAfter); err != nil {
			logger.Warn("low balance email not queued", "user_id", d.AccountID, "error", err.Error())
		}
	}
	return Result{Settled: true, Transaction: tx}
}

// afterQuotaUse tells the account when this action used the last slot of the
// month. Nothing is written: the next Usage count includes the new record.
func (s *Settler) afterQuotaUse(ctx context.Context, d *gate.Decision) {
	if s.notify == nil || d.Quota == nil || d.Quota.Remaining != 1 {
		return
	}
	if err := s.notify.SendLimitReached(ctx, d.Email, d.Name, string(d.Action), d.Quota.Limit); err != nil {
		logger.Warn("limit reached email not queued", "user_id", d.AccountID, "error", err.Error())
	}
}

func reason(d *gate.Decision) string {
	switch {
	case d.Action == quota.ActionMission && d.Tokens.Breakdown.Featured > 0:
		return "featured mission posted"
	case d.Action == quota.ActionMission:
		return "mission posted"
	default:
		return "worker contacted"
	}
}
