package ledger

import (
	"context"
	"fmt"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/numerator"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/audit"
	"ispledger/internal/domain/notify"
	"ispledger/pkg/logger"
)

// SettleRequest pays off debts by salary deduction and cash.
type SettleRequest struct {
	TechnicianID    string
	DebtIDs         []id.ID
	SalaryDeduction types.Money
	CashPayment     types.Money
	Notes           string
}

func (r SettleRequest) validate() error {
	if r.TechnicianID == "" {
		return apperror.NewValidation("technician is required").WithDetail("field", "technicianId")
	}
	if len(r.DebtIDs) == 0 {
		return apperror.NewValidation("at least one debt is required").WithDetail("field", "debtIds")
	}
	if len(id.SortedUnique(r.DebtIDs)) != len(r.DebtIDs) {
		return apperror.NewValidation("debt listed twice").WithDetail("field", "debtIds")
	}
	if r.SalaryDeduction.IsNegative() || r.CashPayment.IsNegative() {
		return apperror.NewValidation("payments cannot be negative").WithDetail("field", "cashPayment")
	}
	return nil
}

// Settle closes the named debts financially. The payment must cover the sum
// of their current values; each debt is forced to fully_settled and one
// settlement with a line per debt is recorded. Unit state is not touched.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*Settlement, error) {
	ctx, span := tracer.Start(ctx, "ledger.Settle")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var st *Settlement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.LockTechnician(ctx, req.TechnicianID); err != nil {
			return err
		}
		debts, err := s.repo.GetDebtsForUpdate(ctx, req.DebtIDs)
		if err != nil {
			return err
		}

		total := types.Zero()
		for _, d := range debts {
			if err := checkReturnable(d, req.TechnicianID); err != nil {
				return err
			}
			total = total.Add(d.CurrentDebtValue)
		}

		paid := req.SalaryDeduction.Add(req.CashPayment)
		if paid.LessThan(total) {
			return apperror.NewInsufficientPayment(total.String(), paid.String())
		}

		number, err := s.numerator.GetNextNumber(ctx, numerator.SettlementConfig,
			&numerator.Options{Strategy: SettlementNumberStrategy}, now())
		if err != nil {
			return fmt.Errorf("generate settlement number: %w", err)
		}

		st = &Settlement{
			ID:              id.New(),
			Number:          number,
			TechnicianID:    req.TechnicianID,
			TotalDebtAmount: total,
			SalaryDeduction: req.SalaryDeduction,
			CashPayment:     req.CashPayment,
			RemainingDebt:   remainingAfter(total, paid),
			Status:          SettlementProcessed,
			ProcessedBy:     actor(ctx),
			CreatedAt:       now(),
		}
		if req.Notes != "" {
			notes := req.Notes
			st.Notes = &notes
		}

		for _, d := range debts {
			st.Lines = append(st.Lines, SettlementLine{
				ID:             id.New(),
				SettlementID:   st.ID,
				DebtID:         d.ID,
				QuantityClosed: d.CurrentDebtQuantity,
				AmountClosed:   d.CurrentDebtValue,
			})
			if err := s.save(ctx, d, audit.ActionSettle, d.ForceSettle); err != nil {
				return err
			}
		}

		if err := s.repo.CreateSettlement(ctx, st); err != nil {
			return fmt.Errorf("create settlement: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "settlement processed",
		"settlement_id", st.ID,
		"number", st.Number,
		"technician_id", st.TechnicianID,
		"total", st.TotalDebtAmount,
	)
	notify.Dispatch(ctx, s.notifier,
		notify.NewEvent(notify.EventSettlementProcessed, "settlement", st.ID).
			With(entityDebt, st.DebtIDs()...).
			ForTechnician(st.TechnicianID))
	return st, nil
}
