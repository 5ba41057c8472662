package sequencer

import (
	"testing"

	"tenant-onboarding-backend/db/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classPtr(c models.OccupationClass) *models.OccupationClass { return &c }

func TestTenantSequenceSalaried(t *testing.T) {
	seq := TenantSequence(classPtr(models.OccupationSalaried))
	assert.Equal(t, []models.DocumentType{
		models.DocumentIDCard,
		models.DocumentSephach,
		models.DocumentPayslips,
		models.DocumentBankStatements,
	}, seq)
}

func TestTenantSequenceSelfEmployed(t *testing.T) {
	seq := TenantSequence(classPtr(models.OccupationSelfEmployed))
	assert.Equal(t, models.DocumentPNL, seq[2])
}

func TestTenantSequenceUnknownOccupationDefaultsToPayslips(t *testing.T) {
	seq := TenantSequence(nil)
	assert.Equal(t, models.DocumentPayslips, seq[2])
}

func TestNextTenantDocumentWalk(t *testing.T) {
	cases := []struct {
		current models.DocumentType
		class   *models.OccupationClass
		next    models.DocumentType
		ok      bool
	}{
		{models.DocumentIDCard, nil, models.DocumentSephach, true},
		{models.DocumentSephach, nil, models.DocumentPayslips, true},
		{models.DocumentSephach, classPtr(models.OccupationSelfEmployed), models.DocumentPNL, true},
		{models.DocumentPayslips, nil, models.DocumentBankStatements, true},
		{models.DocumentPNL, classPtr(models.OccupationSelfEmployed), models.DocumentBankStatements, true},
		{models.DocumentBankStatements, nil, "", false},
		{models.DocumentBankStatements, classPtr(models.OccupationSelfEmployed), "", false},
	}

	for _, c := range cases {
		next, ok, err := NextTenantDocument(c.current, c.class)
		require.NoError(t, err)
		assert.Equal(t, c.ok, ok, "current=%s", c.current)
		assert.Equal(t, c.next, next, "current=%s", c.current)
	}
}

func TestNextTenantDocumentIsDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		next, ok, err := NextTenantDocument(models.DocumentIDCard, nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, models.DocumentSephach, next)
	}
}

// The financial slot can hold payslips while the classification already says
// self-employed (or the reverse); advancing from either slot still reaches
// bank statements rather than erroring.
func TestNextTenantDocumentCrossedFinancialSlot(t *testing.T) {
	next, ok, err := NextTenantDocument(models.DocumentPayslips, classPtr(models.OccupationSelfEmployed))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.DocumentBankStatements, next)

	next, ok, err = NextTenantDocument(models.DocumentPNL, classPtr(models.OccupationSalaried))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.DocumentBankStatements, next)
}

func TestNextGuarantorDocumentWalk(t *testing.T) {
	order := GuarantorSequence()
	require.Len(t, order, 4)

	for i := 0; i < len(order)-1; i++ {
		next, ok, err := NextGuarantorDocument(order[i])
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, order[i+1], next)
	}

	_, ok, err := NextGuarantorDocument(order[len(order)-1])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownDocumentTypeIsAnError(t *testing.T) {
	_, _, err := NextTenantDocument("passport", nil)
	require.ErrorIs(t, err, ErrUnknownDocumentType)

	_, _, err = NextGuarantorDocument("")
	require.ErrorIs(t, err, ErrUnknownDocumentType)
}
