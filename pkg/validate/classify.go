// Package validate classifies inbound messages for validate nodes using
// deterministic pattern rules.
package validate

import (
	"regexp"
	"strings"

	"github.com/zapfy/botflow/pkg/models"
)

var (
	numberPattern = regexp.MustCompile(`^[+-]?\d+([.,]\d+)?$`)
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	cpfStrip      = regexp.MustCompile(`[.\-\s]`)
)

// Classify reports whether message satisfies the given validation type.
// The outcome feeds the node's true/false branch.
func Classify(validationType models.ValidationType, message string) bool {
	message = strings.TrimSpace(message)

	switch validationType {
	case models.ValidationAny:
		return true
	case models.ValidationText:
		return message != ""
	case models.ValidationNumber:
		return numberPattern.MatchString(message)
	case models.ValidationEmail:
		return emailPattern.MatchString(message)
	case models.ValidationCPF:
		return validCPF(message)
	default:
		return false
	}
}

// validCPF checks the 11-digit Brazilian CPF including both check
// digits. Formatting (dots, dash, spaces) is tolerated.
func validCPF(s string) bool {
	digits := cpfStrip.ReplaceAllString(s, "")
	if len(digits) != 11 {
		return false
	}

	nums := make([]int, 11)

	allEqual := true

	for i, r := range digits {
		if r < '0' || r > '9' {
			return false
		}

		nums[i] = int(r - '0')
		if nums[i] != nums[0] {
			allEqual = false
		}
	}

	// Sequences like 000.000.000-00 pass the checksum but are invalid.
	if allEqual {
		return false
	}

	return nums[9] == cpfCheckDigit(nums, 9) && nums[10] == cpfCheckDigit(nums, 10)
}

func cpfCheckDigit(nums []int, length int) int {
	sum := 0
	for i := 0; i < length; i++ {
		sum += nums[i] * (length + 1 - i)
	}

	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}

	return rest
}
