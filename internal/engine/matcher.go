package engine

import (
	"context"
	"fmt"
	"log"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/query"
)

// matchLimit caps how many matches a single pattern may yield on one
// unit. Pathological inputs (generated code, minified bundles) hit this
// before they exhaust memory; the pattern's remaining matches are
// dropped with a warning.
const matchLimit = 10000

// Match is one successful application of a pattern: the originating
// handler's name plus the bound captures. Nodes point into the parsed
// tree, so a Match must not outlive it.
type Match struct {
	Handler  string
	Captures map[string]*sitter.Node
}

type compiledPattern struct {
	handler *Handler
	query   *sitter.Query
}

// matcher holds one language's compiled patterns in registration order.
type matcher struct {
	patterns []*compiledPattern
}

// newMatcher compiles every definition in the registry. A pattern the
// grammar rejects fails the whole set here, at load time, so matching
// never encounters an uncompilable query.
func newMatcher(reg *Registry, grammar *sitter.Language) (*matcher, error) {
	m := &matcher{}
	for _, h := range reg.Handlers() {
		def := h.Definition
		q, qerr := sitter.NewQuery(grammar, def.Pattern)
		if qerr != nil {
			m.close()
			return nil, &query.PatternError{
				Handler: def.Handler,
				Line:    def.Line,
				Reason:  fmt.Sprintf("query does not compile: %s", qerr.Message),
			}
		}
		m.patterns = append(m.patterns, &compiledPattern{handler: h, query: q})
	}
	return m, nil
}

func (m *matcher) close() {
	for _, p := range m.patterns {
		if p.query != nil {
			p.query.Close()
		}
	}
}

type anchorKey struct {
	handler    string
	start, end uint
}

// run applies every pattern to the tree in registration order and
// accumulates the surviving matches. Two matches of the same handler on
// the same anchor range indicate a broken pattern, not a broken input,
// and abort the run. Cancellation is honored between patterns.
func (m *matcher) run(ctx context.Context, root *sitter.Node, content []byte) ([]*Match, error) {
	var out []*Match
	seen := make(map[anchorKey]struct{})

	for _, p := range m.patterns {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		def := p.handler.Definition
		names := p.query.CaptureNames()
		cursor := sitter.NewQueryCursor()
		count := 0

		matches := cursor.Matches(p.query, root, content)
		for qm := matches.Next(); qm != nil; qm = matches.Next() {
			count++
			if count > matchLimit {
				log.Printf("Warning: pattern %s exceeded %d matches on one unit, dropping the rest", def.Handler, matchLimit)
				break
			}

			captures := make(map[string]*sitter.Node, len(qm.Captures))
			for i := range qm.Captures {
				c := &qm.Captures[i]
				if int(c.Index) >= len(names) {
					continue
				}
				node := c.Node
				captures[names[c.Index]] = &node
			}

			if !evalPredicates(def.Predicates, captures) {
				continue
			}

			if anchor := captures[def.Anchor()]; anchor != nil {
				key := anchorKey{def.Handler, anchor.StartByte(), anchor.EndByte()}
				if _, dup := seen[key]; dup {
					cursor.Close()
					return nil, &MatchError{
						Handler: def.Handler,
						Detail: fmt.Sprintf("duplicate match for @%s at bytes %d-%d",
							def.Anchor(), anchor.StartByte(), anchor.EndByte()),
					}
				}
				seen[key] = struct{}{}
			}

			out = append(out, &Match{Handler: def.Handler, Captures: captures})
		}
		cursor.Close()
	}
	return out, nil
}
