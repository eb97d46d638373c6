package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/validate"
)

func TestClassify_Any(t *testing.T) {
	t.Parallel()

	assert.True(t, validate.Classify(models.ValidationAny, ""))
	assert.True(t, validate.Classify(models.ValidationAny, "anything"))
}

func TestClassify_Text(t *testing.T) {
	t.Parallel()

	assert.True(t, validate.Classify(models.ValidationText, "oi"))
	assert.False(t, validate.Classify(models.ValidationText, ""))
	assert.False(t, validate.Classify(models.ValidationText, "   "))
}

func TestClassify_Number(t *testing.T) {
	t.Parallel()

	valid := []string{"42", "-7", "+15", "3.14", "1500,00", " 10 "}
	for _, s := range valid {
		assert.True(t, validate.Classify(models.ValidationNumber, s), "input %q", s)
	}

	invalid := []string{"", "abc", "1e5", "1.2.3", "10%", "R$ 100"}
	for _, s := range invalid {
		assert.False(t, validate.Classify(models.ValidationNumber, s), "input %q", s)
	}
}

func TestClassify_Email(t *testing.T) {
	t.Parallel()

	valid := []string{"maria@example.com", "joao.silva+tag@sub.domain.com.br"}
	for _, s := range valid {
		assert.True(t, validate.Classify(models.ValidationEmail, s), "input %q", s)
	}

	invalid := []string{"", "maria", "maria@", "@example.com", "maria@example", "a b@example.com"}
	for _, s := range invalid {
		assert.False(t, validate.Classify(models.ValidationEmail, s), "input %q", s)
	}
}

func TestClassify_CPF(t *testing.T) {
	t.Parallel()

	// 529.982.247-25 is a classic valid fixture.
	valid := []string{"52998224725", "529.982.247-25", "529 982 247 25"}
	for _, s := range valid {
		assert.True(t, validate.Classify(models.ValidationCPF, s), "input %q", s)
	}

	invalid := []string{
		"",
		"52998224724",    // wrong second check digit
		"52998224735",    // wrong first check digit
		"11111111111",    // repeated digits pass the checksum but are rejected
		"000.000.000-00", // same, formatted
		"5299822472",     // too short
		"529982247255",   // too long
		"5299822472a",    // non-digit
	}
	for _, s := range invalid {
		assert.False(t, validate.Classify(models.ValidationCPF, s), "input %q", s)
	}
}

func TestClassify_UnknownTypeIsFalse(t *testing.T) {
	t.Parallel()

	assert.False(t, validate.Classify("phone", "11999990000"))
}
