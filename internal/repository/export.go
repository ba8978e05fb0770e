package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
)

// ExportOptions narrows an export.
type ExportOptions struct {
	// Context keeps only the graphs of one context: its index graph and
	// every graph below it.
	Context string
	// Graph keeps graphs whose URI, relative to the base URI, matches a
	// doublestar pattern such as "*/entry/**".
	Graph string
}

// Export is a canonical dump of statements.
type Export struct {
	NQuads     []byte
	Digest     string
	Statements int
}

// Export dumps statements as sorted N-Quads with a digest of the set.
// Only the admin user or members of admins may export.
func (r *Repository) Export(ctx context.Context, s Session, opts ExportOptions) (Export, error) {
	admin, err := r.isAdmin(s)
	if err != nil {
		return Export{}, err
	}
	if !admin {
		return Export{}, newAuthorizationError(s.Principal(), r.layout.Base, Administer)
	}
	if opts.Graph != "" && !doublestar.ValidatePattern(opts.Graph) {
		return Export{}, fmt.Errorf("export: invalid graph pattern %q", opts.Graph)
	}
	var q queryir.Query = queryir.Pattern{}
	if opts.Context != "" {
		q = queryir.Select{Filter: queryir.HasPrefix{Position: queryir.GraphPos, Prefix: r.layout.Context(opts.Context).Value}}
	}
	qs, err := r.store.Query(ctx, q)
	if err != nil {
		return Export{}, storeError("export", err)
	}

	ctxURI := r.layout.Context(opts.Context).Value
	out := make([]ir.Quad, 0, len(qs))
	for _, quad := range qs {
		g := quad.Graph.Value
		if opts.Context != "" && g != ctxURI && !strings.HasPrefix(g, ctxURI+"/") {
			continue
		}
		if opts.Graph != "" {
			rel, _ := strings.CutPrefix(g, r.layout.Base)
			if ok, _ := doublestar.Match(opts.Graph, rel); !ok {
				continue
			}
		}
		out = append(out, quad)
	}
	digest, err := ir.GraphDigest(ir.Graph(out))
	if err != nil {
		return Export{}, fmt.Errorf("export: %w", err)
	}
	return Export{
		NQuads:     ir.MarshalNQuads(out),
		Digest:     digest,
		Statements: len(out),
	}, nil
}
