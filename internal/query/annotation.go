package query

import (
	"fmt"
	"strings"

	"github.com/quarry-dev/quarry/internal/entity"
)

// builtinPredicates are evaluated by the tree-sitter query engine itself,
// so the annotation parser passes them through without interpretation.
var builtinPredicates = map[string]struct{}{
	"eq?": {}, "not-eq?": {}, "any-eq?": {}, "any-not-eq?": {},
	"match?": {}, "not-match?": {}, "any-match?": {}, "any-not-match?": {},
	"any-of?": {}, "not-any-of?": {}, "is?": {}, "is-not?": {}, "set!": {},
}

// Parse turns annotated query-definition text into an ordered sequence of
// definitions. Each pattern must be immediately preceded by a comment
// block carrying at least an @handler line:
//
//	; @handler rust::struct_definition
//	; @entity_type Struct
//	; @capture struct
//	; @description Struct definitions with visibility and name
//	(struct_item (visibility_modifier)? @visibility name: (type_identifier) @name) @struct
//
// Parse is a pure transformation; it reads no files and mutates no
// shared state.
func Parse(src string) ([]*Definition, error) {
	var defs []*Definition
	seen := make(map[string]struct{})

	var annos []annotation
	blockEnd := 0

	i, line := 0, 1
	for i < len(src) {
		switch c := src[i]; {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ';':
			start := i
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if blockEnd != line-1 && blockEnd != line {
				annos = annos[:0]
			}
			if a, ok := parseAnnotationLine(src[start:i], line); ok {
				annos = append(annos, a)
			}
			blockEnd = line
		case c == '(' || c == '[':
			startLine := line
			end, endLine, perr := consumeSexp(src, i, line)
			if perr != nil {
				return nil, perr
			}
			end = consumeTrailing(src, end)
			pattern := src[i:end]
			i, line = end, endLine

			var meta blockMeta
			if blockEnd == startLine-1 {
				meta = collectMeta(annos)
			}
			annos = annos[:0]
			blockEnd = 0

			def, err := buildDefinition(meta, pattern, startLine)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[def.Handler]; dup {
				return nil, &DuplicateHandlerError{Handler: def.Handler}
			}
			seen[def.Handler] = struct{}{}
			defs = append(defs, def)
		default:
			return nil, &PatternError{
				Line:   line,
				Reason: fmt.Sprintf("unexpected character %q outside any pattern", c),
			}
		}
	}
	return defs, nil
}

type annotation struct {
	key   string
	value string
	line  int
}

type blockMeta struct {
	handler     string
	typeLabel   string
	capture     string
	description string
}

// parseAnnotationLine extracts "@key value" from a comment line. Comment
// lines without an @key are block prose and carry no metadata.
func parseAnnotationLine(text string, line int) (annotation, bool) {
	body := strings.TrimLeft(text, ";")
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "@") {
		return annotation{}, false
	}
	body = body[1:]
	key, value := body, ""
	if idx := strings.IndexAny(body, " \t"); idx != -1 {
		key, value = body[:idx], strings.TrimSpace(body[idx:])
	}
	return annotation{key: key, value: value, line: line}, key != ""
}

func collectMeta(annos []annotation) blockMeta {
	var m blockMeta
	var desc []string
	for _, a := range annos {
		switch a.key {
		case "handler":
			m.handler = a.value
		case "entity_type":
			m.typeLabel = a.value
		case "capture":
			m.capture = strings.TrimPrefix(a.value, "@")
		case "description":
			if a.value != "" {
				desc = append(desc, a.value)
			}
		}
	}
	m.description = strings.Join(desc, " ")
	return m
}

func buildDefinition(meta blockMeta, pattern string, line int) (*Definition, error) {
	if meta.handler == "" {
		return nil, &MissingHandlerError{Line: line}
	}

	captures, predicates, perr := scanPattern(pattern, line)
	if perr != nil {
		perr.Handler = meta.handler
		return nil, perr
	}

	entityType := entity.TypeUnknown
	if meta.typeLabel != "" {
		if parsed, ok := entity.ParseType(meta.typeLabel); ok {
			entityType = parsed
		}
	}

	def := &Definition{
		Handler:        meta.handler,
		EntityType:     entityType,
		TypeLabel:      meta.typeLabel,
		PrimaryCapture: meta.capture,
		Description:    meta.description,
		Pattern:        pattern,
		Captures:       captures,
		Predicates:     predicates,
		Line:           line,
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// consumeTrailing extends the pattern span over same-line suffix tokens:
// the outer capture (`) @struct`) and quantifiers (`?`, `*`, `+`).
func consumeTrailing(src string, end int) int {
	for end < len(src) {
		j := end
		for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
			j++
		}
		if j >= len(src) {
			break
		}
		switch src[j] {
		case '@':
			j++
			for j < len(src) && isTokenChar(src[j]) {
				j++
			}
			end = j
		case '?', '*', '+':
			end = j + 1
		default:
			return end
		}
	}
	return end
}

// consumeSexp advances past one balanced S-expression starting at src[i],
// honoring string literals and comments.
func consumeSexp(src string, i, line int) (end, endLine int, perr *PatternError) {
	startLine := line
	depth := 0
	for i < len(src) {
		switch src[i] {
		case '\n':
			line++
			i++
		case '(', '[':
			depth++
			i++
		case ')', ']':
			depth--
			i++
			if depth == 0 {
				return i, line, nil
			}
			if depth < 0 {
				return i, line, &PatternError{Line: line, Reason: "unbalanced closing bracket"}
			}
		case '"':
			i++
			for i < len(src) && src[i] != '"' {
				if src[i] == '\\' {
					i++
				} else if src[i] == '\n' {
					line++
				}
				i++
			}
			i++
		case ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		default:
			i++
		}
	}
	return i, line, &PatternError{Line: startLine, Reason: "unterminated pattern"}
}

// scanPattern collects capture names in order of first appearance and
// parses structural predicates. Built-in predicates stay in the pattern
// text untouched.
func scanPattern(pattern string, baseLine int) ([]string, []Predicate, *PatternError) {
	var captures []string
	var predicates []Predicate

	type predFrame struct {
		depth  int
		line   int
		tokens []string
	}
	var pred *predFrame

	addCapture := func(name string) {
		for _, c := range captures {
			if c == name {
				return
			}
		}
		captures = append(captures, name)
	}

	depth := 0
	i, line := 0, baseLine
	for i < len(pattern) {
		switch c := pattern[i]; {
		case c == '\n':
			line++
			i++
		case c == '(':
			depth++
			j := i + 1
			for j < len(pattern) && (pattern[j] == ' ' || pattern[j] == '\t') {
				j++
			}
			if j < len(pattern) && pattern[j] == '#' && pred == nil {
				pred = &predFrame{depth: depth, line: line}
			}
			i++
		case c == '[':
			depth++
			i++
		case c == ')' || c == ']':
			if pred != nil && depth == pred.depth {
				p, keep, perr := parsePredicate(pred.tokens, pred.line)
				if perr != nil {
					return nil, nil, perr
				}
				if keep {
					predicates = append(predicates, p)
				}
				pred = nil
			}
			depth--
			i++
		case c == '"':
			start := i
			i++
			for i < len(pattern) && pattern[i] != '"' {
				if pattern[i] == '\\' {
					i++
				} else if pattern[i] == '\n' {
					line++
				}
				i++
			}
			i++
			if pred != nil {
				pred.tokens = append(pred.tokens, pattern[start:min(i, len(pattern))])
			}
		case c == ';':
			for i < len(pattern) && pattern[i] != '\n' {
				i++
			}
		case c == '@' || c == '#':
			start := i
			i++
			for i < len(pattern) && isTokenChar(pattern[i]) {
				i++
			}
			token := pattern[start:i]
			if pred != nil {
				pred.tokens = append(pred.tokens, token)
			} else if c == '@' && len(token) > 1 {
				addCapture(token[1:])
			}
		case isTokenChar(c):
			start := i
			for i < len(pattern) && isTokenChar(pattern[i]) {
				i++
			}
			if pred != nil {
				pred.tokens = append(pred.tokens, pattern[start:i])
			}
		default:
			i++
		}
	}
	return captures, predicates, nil
}

// parsePredicate interprets one (#op ...) form. keep=false means the
// operator is a tree-sitter built-in left for the query engine.
func parsePredicate(tokens []string, line int) (p Predicate, keep bool, perr *PatternError) {
	if len(tokens) == 0 {
		return Predicate{}, false, &PatternError{Line: line, Reason: "empty predicate"}
	}
	op := strings.TrimPrefix(tokens[0], "#")
	if _, builtin := builtinPredicates[op]; builtin {
		return Predicate{}, false, nil
	}

	switch PredicateOp(op) {
	case OpHasChild, OpNotHasChild, OpHasAncestor, OpNotHasAncestor:
	default:
		return Predicate{}, false, &PatternError{
			Line: line,
			Reason: fmt.Sprintf("unknown predicate #%s (built-ins like #eq? and #match? are evaluated by tree-sitter)",
				op),
		}
	}

	args := tokens[1:]
	if len(args) != 2 {
		return Predicate{}, false, &PatternError{
			Line:   line,
			Reason: fmt.Sprintf("#%s expects 2 arguments, got %d", op, len(args)),
		}
	}
	if !strings.HasPrefix(args[0], "@") || len(args[0]) < 2 {
		return Predicate{}, false, &PatternError{
			Line:   line,
			Reason: fmt.Sprintf("first argument to #%s must be a capture", op),
		}
	}
	if strings.HasPrefix(args[1], "@") {
		return Predicate{}, false, &PatternError{
			Line:   line,
			Reason: fmt.Sprintf("second argument to #%s must be a node kind, not a capture", op),
		}
	}

	return Predicate{
		Op:      PredicateOp(op),
		Capture: args[0][1:],
		Kind:    strings.Trim(args[1], `"`),
		Negated: strings.HasPrefix(op, "not-"),
	}, true, nil
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == '?', c == '!':
		return true
	}
	return false
}
