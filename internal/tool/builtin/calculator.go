package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Calculator evaluates arithmetic expressions with + - * /, unary minus and parentheses.
type Calculator struct{}

func (tool *Calculator) Name() string { return "calculate" }
func (tool *Calculator) Description() string {
	return "Evaluates an arithmetic expression. Supports + - * /, parentheses, unary minus and decimals."
}
func (tool *Calculator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression to evaluate, for example (12.5 + 7) * 3",
			},
		},
		"required": []string{"expression"},
	}
}

func (tool *Calculator) Execute(_ context.Context, arguments string) (string, error) {
	if !gjson.Valid(arguments) {
		return "error: arguments are not valid JSON", nil
	}

	expression := strings.TrimSpace(gjson.Get(arguments, "expression").String())
	if expression == "" {
		return "error: missing required argument: expression", nil
	}

	value, err := evaluate(expression)
	if err != nil {
		return "error: " + err.Error(), nil
	}

	return formatNumber(value), nil
}

func formatNumber(value float64) string {
	if value == math.Trunc(value) && math.Abs(value) < 1e15 {
		return strconv.FormatInt(int64(value), 10)
	}

	text := fmt.Sprintf("%.6f", value)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}

type exprParser struct {
	input string
	pos   int
}

func evaluate(expression string) (float64, error) {
	parser := &exprParser{input: expression}

	value, err := parser.parseExpression()
	if err != nil {
		return 0, err
	}

	parser.skipSpaces()
	if parser.pos < len(parser.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", parser.input[parser.pos], parser.pos)
	}

	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errors.New("result is not a finite number")
	}

	return value, nil
}

// expression := term (('+' | '-') term)*
func (p *exprParser) parseExpression() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			return left, nil
		}

		op := p.input[p.pos]
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++

		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}

		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// term := factor (('*' | '/') factor)*
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			return left, nil
		}

		op := p.input[p.pos]
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++

		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}

		if op == '*' {
			left *= right
			continue
		}

		if right == 0 {
			return 0, errors.New("division by zero")
		}
		left /= right
	}
}

// factor := '-' factor | '+' factor | '(' expression ')' | number
func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, errors.New("unexpected end of expression")
	}

	switch p.input[p.pos] {
	case '-':
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	case '+':
		p.pos++
		return p.parseFactor()
	case '(':
		p.pos++
		value, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}

	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}

	if start == p.pos {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}

	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}

	return value, nil
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
