package ledger

import (
	"encoding/json"

	"github.com/mmeshcher/freightguard/internal/canonical"
	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/money"
)

// Коды расхождений в отчёте аудита.
const (
	IssuePrevHashMismatch = "prev_hash_mismatch"
	IssueHashMismatch     = "hash_mismatch"
	IssuePayloadInvalid   = "payload_invalid"
)

type budgetFields struct {
	Total *float64 `json:"total"`
	Cost  *float64 `json:"cost"`
}

// Verify проходит события по возрастанию id, пересчитывает хеши и восстанавливает бюджет.
// Обход не прерывается на расхождениях. Ожидаемым prev_hash следующего события считается
// хранимый hash текущего, поэтому одна порча не размножается по хвосту цепочки.
func Verify(events []model.LedgerEvent) model.AuditReport {
	report := model.AuditReport{
		OK:     true,
		Issues: []model.AuditIssue{},
		Events: len(events),
	}

	prev := model.GenesisHash

	for _, e := range events {
		prevBroken := e.PrevHash != prev
		if prevBroken {
			report.Issues = append(report.Issues, model.AuditIssue{
				ID:       e.ID,
				Issue:    IssuePrevHashMismatch,
				Expected: prev,
				Got:      e.PrevHash,
			})
		}

		computed, err := canonical.Digest(e.PrevHash, string(e.Type), e.Payload, e.CreatedAt)
		switch {
		case err != nil:
			report.Issues = append(report.Issues, model.AuditIssue{
				ID:    e.ID,
				Issue: IssuePayloadInvalid,
				Got:   err.Error(),
			})
		case computed != e.Hash && !(prevBroken && linksTo(prev, e)):
			report.Issues = append(report.Issues, model.AuditIssue{
				ID:       e.ID,
				Issue:    IssueHashMismatch,
				Expected: computed,
				Got:      e.Hash,
			})
		}

		deriveBudget(&report.DerivedBudget, e)
		prev = e.Hash
	}

	report.OK = len(report.Issues) == 0
	return report
}

// linksTo сообщает, что хранимый hash события вычислен от prev. Тогда испорчено только
// поле prev_hash, и расхождение уже учтено как prev_hash_mismatch.
func linksTo(prev string, e model.LedgerEvent) bool {
	h, err := canonical.Digest(prev, string(e.Type), e.Payload, e.CreatedAt)
	return err == nil && h == e.Hash
}

func deriveBudget(b *model.DerivedBudget, e model.LedgerEvent) {
	var f budgetFields
	if err := json.Unmarshal(e.Payload, &f); err != nil {
		return
	}

	switch e.Type {
	case model.EventBudgetResetDaily:
		if f.Total == nil {
			return
		}
		total, left := *f.Total, *f.Total
		b.Total, b.Left = &total, &left
	case model.EventOperationDecided:
		if f.Cost == nil || !money.IsPositive(*f.Cost) || b.Left == nil {
			return
		}
		left := money.Sub(*b.Left, *f.Cost)
		b.Left = &left
	}
}
