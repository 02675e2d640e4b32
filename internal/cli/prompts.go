package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/DexterGo/internal/models"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// NormalizeSymbol accepts either the canonical MARKET:CODE form or a bare
// code, which defaults to the US market.
func NormalizeSymbol(raw string) (models.SymbolKey, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if !strings.Contains(raw, ":") {
		raw = "US:" + raw
	}
	return models.ParseSymbolKey(raw)
}

// PromptForSymbol asks for a symbol key interactively.
func PromptForSymbol() (models.SymbolKey, error) {
	var input string
	prompt := &survey.Input{
		Message: "Symbol to research (e.g. US:AAPL, HK:700, or bare AAPL):",
		Help:    "Use MARKET:CODE. Supported markets: US, HK, CN, TW. A bare code means US.",
	}

	err := survey.AskOne(prompt, &input, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		str = strings.ToUpper(strings.TrimSpace(str))
		if str == "" {
			return fmt.Errorf("symbol cannot be empty")
		}
		code := str
		if _, c, ok := strings.Cut(str, ":"); ok {
			code = c
		}
		if !codePattern.MatchString(code) {
			return fmt.Errorf("invalid symbol code %q (letters, digits, dots, and hyphens only)", code)
		}
		if _, err := NormalizeSymbol(str); err != nil {
			return err
		}
		return nil
	}))
	if err != nil {
		return models.SymbolKey{}, err
	}
	return NormalizeSymbol(input)
}

// PromptForQuestion asks what the research meeting should focus on.
func PromptForQuestion() (string, error) {
	var question string
	prompt := &survey.Input{
		Message: "Research question:",
		Default: "Give an overall assessment of the investment case.",
		Help:    "The expert panel will shape its discussion around this question.",
	}
	if err := survey.AskOne(prompt, &question); err != nil {
		return "", err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		question = "Give an overall assessment of the investment case."
	}
	return question, nil
}

// PromptForLLMProvider lets the user pick a chat model backend.
func PromptForLLMProvider(current string) (string, error) {
	var selected string
	prompt := &survey.Select{
		Message: "LLM provider:",
		Options: []string{"deepseek", "openai"},
		Default: current,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}
