package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compliantContract = `SERVICE AGREEMENT
1. Confidentiality. Each party keeps the other's information secret.
2. Termination. Either party may end this agreement with notice.
3. Liability. Liability is capped at the fees paid.
4. Governing Law. This agreement is governed by the laws of Ireland.
Fees: $5,000 per year for 12 months.`

func TestDefaultRules(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"confidentiality", "termination", "liability", "governing_law"}, r.RequiredClauses)
	assert.Len(t, r.ForbiddenTerms, 3)
	assert.Equal(t, float64(100000), r.ApprovalThresholds.ContractValue)
	assert.Equal(t, 36, r.ApprovalThresholds.TermLengthMonths)
}

func TestCheckCompliant(t *testing.T) {
	report := New(Default()).Check(compliantContract)
	assert.True(t, report.Compliant)
	assert.Empty(t, report.Violations)
	assert.Empty(t, report.RequiredApprovals)
	assert.Empty(t, report.Warnings)
}

func TestCheckViolations(t *testing.T) {
	text := "The supplier accepts Unlimited Liability. This agreement has automatic renewal. Confidentiality applies."
	report := New(Default()).Check(text)

	assert.False(t, report.Compliant)
	assert.Contains(t, report.Violations, "Missing required clause: termination")
	assert.Contains(t, report.Violations, "Missing required clause: governing_law")
	assert.Contains(t, report.Violations, "Contains forbidden term: unlimited liability")
	assert.Contains(t, report.Violations, "Contains forbidden term: automatic renewal")
	assert.NotContains(t, report.Violations, "Missing required clause: liability")
}

func TestCheckApprovals(t *testing.T) {
	text := compliantContract + "\nTotal value: $250,000. Term of 5 years. Signed by [NAME]."
	report := New(Default()).Check(text)

	assert.True(t, report.Compliant)
	assert.Equal(t, []string{"finance_approval", "legal_approval"}, report.RequiredApprovals)
	assert.Equal(t, []string{"Contract contains unfilled placeholders"}, report.Warnings)
}

func TestContractValue(t *testing.T) {
	assert.Equal(t, 1500.0, ContractValue("pay $1,500.00 now"))
	assert.Equal(t, 2_000_000.0, ContractValue("up to USD 2 million or $10"))
	assert.Equal(t, 50_000.0, ContractValue("€50k"))
	assert.Zero(t, ContractValue("no money here, 300 widgets"))
}

func TestTermMonths(t *testing.T) {
	assert.Equal(t, 24, TermMonths("for two (2) years or 2 years"))
	assert.Equal(t, 40, TermMonths("40 months, renewable for 1 year"))
	assert.Zero(t, TermMonths("indefinitely"))
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c.Rules())

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("required_clauses: [indemnity]\n"), 0o600))
	c, err = Load(path)
	require.NoError(t, err)
	report := c.Check("No such clause")
	assert.Equal(t, []string{"Missing required clause: indemnity"}, report.Violations)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
