package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeSimpleChain(t *testing.T) {
	r := Analyze("python", "x = 10")
	assert.Empty(t, r.Reads)
	assert.Equal(t, []string{"x"}, r.Writes)

	r = Analyze("python", "y = x + 5")
	assert.Equal(t, []string{"x"}, r.Reads)
	assert.Equal(t, []string{"y"}, r.Writes)

	r = Analyze("python", "z = y * 2")
	assert.Equal(t, []string{"y"}, r.Reads)
	assert.Equal(t, []string{"z"}, r.Writes)
}

func TestAnalyzeMultipleTargets(t *testing.T) {
	r := Analyze("python", "a, b = x, y")
	assert.ElementsMatch(t, []string{"x", "y"}, r.Reads)
	assert.ElementsMatch(t, []string{"a", "b"}, r.Writes)
}

func TestAnalyzeFunctionLocalsDoNotLeak(t *testing.T) {
	r := Analyze("python", "def f(n):\n total = n + 1\n return total\nresult = f(x)")
	assert.ElementsMatch(t, []string{"x", "f"}, r.Reads)
	assert.ElementsMatch(t, []string{"f", "result"}, r.Writes)
}

func TestAnalyzeGlobalDeclarationPromotesWrite(t *testing.T) {
	r := Analyze("python", "def bump():\n global counter\n counter = counter + 1\nbump")
	assert.Contains(t, r.Reads, "counter")
	assert.Contains(t, r.Writes, "counter")
	assert.Contains(t, r.Writes, "bump")
}

func TestAnalyzeComprehensionScopeIsolated(t *testing.T) {
	r := Analyze("python", "squares = [i * i for i in values]")
	assert.ElementsMatch(t, []string{"values"}, r.Reads)
	assert.ElementsMatch(t, []string{"squares"}, r.Writes)
}

func TestAnalyzeAugAssignReadsAndWrites(t *testing.T) {
	r := Analyze("python", "total += delta")
	assert.Contains(t, r.Reads, "total")
	assert.Contains(t, r.Reads, "delta")
	assert.Contains(t, r.Writes, "total")
}

func TestAnalyzeUnparseableYieldsEmpty(t *testing.T) {
	r := Analyze("python", "def (((")
	assert.Empty(t, r.Reads)
	assert.Empty(t, r.Writes)
}

func TestAnalyzeSQLPlaceholders(t *testing.T) {
	r := Analyze("sql", "SELECT * FROM orders WHERE user_id = {user_id} AND status = {status}")
	assert.ElementsMatch(t, []string{"user_id", "status"}, r.Reads)
	assert.Empty(t, r.Writes)
}

func TestAnalyzeSQLIgnoresPlaceholderInStringLiteral(t *testing.T) {
	r := Analyze("sql", `SELECT '{not_a_param}' AS label, amount FROM sales WHERE region = {region}`)
	assert.Equal(t, []string{"region"}, r.Reads)
}

func TestAnalyzeSQLNoPlaceholders(t *testing.T) {
	r := Analyze("sql", "SELECT 1")
	assert.Empty(t, r.Reads)
	assert.Empty(t, r.Writes)
}
