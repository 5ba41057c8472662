package sequencer

import (
	"errors"
	"fmt"

	"tenant-onboarding-backend/db/models"
)

// ErrUnknownDocumentType marks malformed input. The caller treats it as
// fatal to the conversation and answers with the safe fallback response.
var ErrUnknownDocumentType = errors.New("unknown document type")

// FinancialDocumentFor maps an occupation classification to the financial
// document that class must supply.
func FinancialDocumentFor(class models.OccupationClass) models.DocumentType {
	if class == models.OccupationSelfEmployed {
		return models.DocumentPNL
	}
	return models.DocumentPayslips
}

// TenantSequence derives the tenant's ordered document list. When the
// occupation classification is still unknown the financial slot defaults to
// payslips; the orchestrator substitutes pnl later if the classification
// resolves to self-employed.
func TenantSequence(class *models.OccupationClass) []models.DocumentType {
	financial := models.DocumentPayslips
	if class != nil {
		financial = FinancialDocumentFor(*class)
	}
	return []models.DocumentType{
		models.DocumentIDCard,
		models.DocumentSephach,
		financial,
		models.DocumentBankStatements,
	}
}

// GuarantorSequence is fixed and occupation-independent.
func GuarantorSequence() []models.DocumentType {
	return []models.DocumentType{
		models.DocumentIDCard,
		models.DocumentSephach,
		models.DocumentPayslips,
		models.DocumentBankStatements,
	}
}

// NextTenantDocument returns the document following current in the tenant
// sequence. ok is false at the end of the sequence. A current value outside
// the document taxonomy is malformed input and returns ErrUnknownDocumentType.
func NextTenantDocument(current models.DocumentType, class *models.OccupationClass) (next models.DocumentType, ok bool, err error) {
	return nextIn(TenantSequence(class), current)
}

// NextGuarantorDocument returns the document following current in the fixed
// guarantor sequence.
func NextGuarantorDocument(current models.DocumentType) (next models.DocumentType, ok bool, err error) {
	return nextIn(GuarantorSequence(), current)
}

func nextIn(seq []models.DocumentType, current models.DocumentType) (models.DocumentType, bool, error) {
	if !models.KnownDocumentType(current) {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownDocumentType, current)
	}
	for i, d := range seq {
		if d == current {
			if i+1 < len(seq) {
				return seq[i+1], true, nil
			}
			return "", false, nil
		}
	}
	// A known type absent from this sequence means the financial slot was
	// re-derived under a different classification (payslips vs pnl). Both
	// slots occupy the same position, so advance from that position.
	if current == models.DocumentPayslips || current == models.DocumentPNL {
		return models.DocumentBankStatements, true, nil
	}
	return "", false, nil
}
