package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/finsift/finsift/internal/model"
)

// Codec turns a batch of transactions into a single compact prompt and
// turns the model's compact reply back into one result per transaction.
//
// Canonical reply grammar, one line per transaction, 1-indexed:
//
//	<index>: d:<0|1>|c:<0.0-1.0>|r:<free text>|b:<0-100>
//
// Decoding is defensive: unknown keys are ignored, numeric fields are
// clamped, and a malformed or missing line degrades that single entry
// to a fallback result without touching the rest of the batch.
type Codec struct{}

const unparseableReason = "could not parse response"

// EncodeTransactions renders the user message: one line per transaction
// in the form <index>:<description>|<amount>|<category-hint>.
// Indexes are 1-based to match natural LLM counting behavior.
func (Codec) EncodeTransactions(txns []model.Transaction) string {
	var b strings.Builder
	for i, txn := range txns {
		desc := strings.TrimSpace(txn.Description)
		if txn.MerchantName != "" {
			desc = strings.TrimSpace(txn.MerchantName + " " + desc)
		}
		desc = sanitizeField(desc)
		hint := sanitizeField(txn.CategoryHint)

		fmt.Fprintf(&b, "%d:%s|%.2f|%s\n", i+1, desc, txn.Amount, hint)
	}
	return b.String()
}

// fieldSanitizer collapses the characters that would break the prompt
// framing: the pipe is the field separator and each transaction must
// stay on one line.
var fieldSanitizer = strings.NewReplacer("|", " ", "\r", " ", "\n", " ")

func sanitizeField(s string) string {
	return strings.TrimSpace(fieldSanitizer.Replace(s))
}

// EncodeSystemPrompt builds the system preamble: jurisdiction, the
// caller's business-context rules, and the exact reply grammar.
func (Codec) EncodeSystemPrompt(profile model.UserProfile) string {
	country := profile.CountryCode
	if country == "" {
		country = "AU"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a tax deductibility classifier for %s transactions.\n", country)

	if profile.BusinessType != "" {
		fmt.Fprintf(&b, "The user operates as: %s.\n", profile.BusinessType)
	}
	if profile.Occupation != "" {
		fmt.Fprintf(&b, "The user's occupation is: %s.\n", profile.Occupation)
	}
	if profile.RuleContext != "" {
		fmt.Fprintf(&b, "User-provided deduction rules:\n%s\n", profile.RuleContext)
	}

	b.WriteString(`
Each input line is one transaction: <index>:<description>|<amount>|<category-hint>
Negative amounts are debits, positive amounts are credits.

Reply with exactly one line per transaction, in this exact format:
<index>: d:<0|1>|c:<0.0-1.0>|r:<free text>|b:<0-100>

Where d is 1 if tax deductible, c is your confidence, r is a short
reason, and b is the business-use percentage. No other text.`)
	return b.String()
}

// decodedLine is the per-line decode outcome: either a parsed field map
// or an unparseable marker for its index.
type decodedLine struct {
	fields map[string]string
	index  int
	parsed bool
}

// looseIndexPattern matches any index at a token boundary followed by
// a colon, for replies that wrap entries in prose instead of the
// canonical "<index>:" prefix.
var looseIndexPattern = regexp.MustCompile(`(^|[^0-9])([0-9]+)\s*:\s*`)

// DecodeResponse maps a free-text reply back to exactly n results.
// It never fails: the worst case for any single transaction is a
// fallback result, and the rest of the batch resolves independently.
func (c Codec) DecodeResponse(reply string, n int) []model.ClassificationResult {
	lines := nonBlankLines(reply)
	loose := looseIndexPayloads(lines)

	results := make([]model.ClassificationResult, n)
	for i := 1; i <= n; i++ {
		line := c.decodeLine(lines, loose, i)
		if !line.parsed {
			results[i-1] = model.FallbackResult(unparseableReason)
			continue
		}
		results[i-1] = resultFromFields(line.fields)
	}
	return results
}

// looseIndexPayloads scans the reply once and maps every mentioned
// index to the payload after its first mention.
func looseIndexPayloads(lines []string) map[int]string {
	payloads := make(map[int]string)
	for _, line := range lines {
		for _, m := range looseIndexPattern.FindAllStringSubmatchIndex(line, -1) {
			idx, err := strconv.Atoi(line[m[4]:m[5]])
			if err != nil {
				continue
			}
			if _, seen := payloads[idx]; !seen {
				payloads[idx] = line[m[1]:]
			}
		}
	}
	return payloads
}

// decodeLine locates and splits the reply line for index i. An exact
// "i:" line prefix wins; otherwise the loose token-boundary match is
// consulted.
func (c Codec) decodeLine(lines []string, loose map[int]string, i int) decodedLine {
	exact := strconv.Itoa(i) + ":"
	for _, line := range lines {
		if strings.HasPrefix(line, exact) {
			return decodedLine{
				index:  i,
				fields: splitFields(strings.TrimPrefix(line, exact)),
				parsed: true,
			}
		}
	}

	if payload, ok := loose[i]; ok {
		return decodedLine{
			index:  i,
			fields: splitFields(payload),
			parsed: true,
		}
	}

	return decodedLine{index: i}
}

// splitFields splits a payload on "|", then each segment on the first
// ":". Segments without a colon are ignored.
func splitFields(payload string) map[string]string {
	fields := make(map[string]string)
	for _, segment := range strings.Split(payload, "|") {
		key, value, ok := strings.Cut(segment, ":")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return fields
}

// resultFromFields builds an AI-sourced result from a decoded field
// map. Unknown keys are ignored; missing keys take conservative
// defaults; numeric fields are clamped.
func resultFromFields(fields map[string]string) model.ClassificationResult {
	result := model.ClassificationResult{
		Confidence: 0.5,
		Source:     model.SourceAI,
	}

	if v, ok := fields["d"]; ok {
		result.IsTaxDeductible = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	if v, ok := fields["c"]; ok {
		if score, err := parseScore(v); err == nil {
			result.Confidence = model.ClampConfidence(score)
		}
	}
	if v, ok := fields["r"]; ok {
		result.Reasoning = v
	}
	if v, ok := fields["b"]; ok {
		if pct, err := strconv.Atoi(strings.TrimSuffix(v, "%")); err == nil {
			result.BusinessUsePercent = model.ClampBusinessUse(pct)
		}
	}

	return result.Normalized()
}

// parseScore parses a confidence value, recovering from common model
// formatting noise such as percentages or stray characters.
func parseScore(s string) (float64, error) {
	s = strings.TrimSpace(s)

	if score, err := strconv.ParseFloat(s, 64); err == nil {
		return score, nil
	}

	if strings.HasSuffix(s, "%") {
		if pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64); err == nil {
			return pct / 100.0, nil
		}
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	return strconv.ParseFloat(cleaned, 64)
}

func nonBlankLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
