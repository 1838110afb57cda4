package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Calculator tool
// =============================================================================

var calculatorSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "expression": {
      "type": "string",
      "description": "Arithmetic expression to evaluate, e.g. (2+3)*4"
    }
  },
  "required": ["expression"]
}`)

type calculatorTool struct{}

func newCalculatorTool() *calculatorTool { return &calculatorTool{} }

func (t *calculatorTool) Name() string { return "calculator" }

func (t *calculatorTool) Schema() types.ToolSchema {
	return types.ToolSchema{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression with + - * / % ^ and parentheses",
		Parameters:  calculatorSchema,
	}
}

func (t *calculatorTool) Execute(_ context.Context, args map[string]any) (string, error) {
	expr, _ := args["expression"].(string)
	if strings.TrimSpace(expr) == "" {
		return "", types.NewError(types.ErrInvalidRequest, "expression is required")
	}
	result, err := evalExpression(expr)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(result, 'g', -1, 64), nil
}

// evalExpression evaluates an infix arithmetic expression with a small
// recursive descent parser.
//
//	expr   := term (('+' | '-') term)*
//	term   := power (('*' | '/' | '%') power)*
//	power  := unary ('^' power)?
//	unary  := '-' unary | atom
//	atom   := number | '(' expr ')'
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unexpected character %q at position %d", p.input[p.pos], p.pos))
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, types.NewError(types.ErrInvalidRequest, "expression result is not finite")
	}
	return v, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, types.NewError(types.ErrInvalidRequest, "division by zero")
			}
			left /= right
		case '%':
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, types.NewError(types.ErrInvalidRequest, "division by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		// right associative
		exp, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, types.NewError(types.ErrInvalidRequest, "missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.input) {
			c := p.input[p.pos]
			if (c < '0' || c > '9') && c != '.' {
				break
			}
			p.pos++
		}
		v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return 0, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("invalid number: %s", p.input[start:p.pos]))
		}
		return v, nil
	case c == 0:
		return 0, types.NewError(types.ErrInvalidRequest, "unexpected end of expression")
	default:
		return 0, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unexpected character %q at position %d", c, p.pos))
	}
}
