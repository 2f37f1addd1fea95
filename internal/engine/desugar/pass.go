// Package desugar rewrites lexically scoped private members into plain
// JavaScript.
//
// A unit declares provider sets with `use traits * from P` and accesses
// private members with `target.*name`. The front-end hands the pass a tree in
// marker form (`_StraitsProvider: P;` and `target._Straits.name`); Transform
// collects declarations and accesses in one walk, then records the output
// edits on the tree:
//
//	const _name = _getSymbol("name", P);  // once per (scope, name)
//	target[_name]                         // read
//	_defineHidden(target, _name, value)   // assignment
//
// Provider validity is checked when the generated code runs, not here.
package desugar

import (
	"log/slog"

	"straits/internal/core/errors"
	"straits/internal/engine/syntax"
)

type Options struct {
	Logger *slog.Logger
}

// Stats summarizes one Transform call.
type Stats struct {
	Declarations   int
	Scopes         int
	Accesses       int
	Reads          int
	Assigns        int
	Computed       int
	Bindings       int
	HelpersEmitted int
}

// Transform records on tree the edits that desugar it. The tree is left
// untouched when the unit declares nothing and uses no private access.
func Transform(tree *syntax.Tree, opts Options) (Stats, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return newUnit(tree, log).transform()
}

// transform runs collection and synthesis. The unit is drained on every
// return path.
func (u *unit) transform() (stats Stats, err error) {
	defer func() {
		if derr := u.drain(); err == nil {
			err = derr
		}
	}()

	tree := u.tree
	if err := u.collect(tree.Root()); err != nil {
		return stats, err
	}

	stats.Declarations = len(u.decls)
	stats.Accesses = len(u.accesses)
	stats.Computed = len(u.stripped)
	for _, a := range u.accesses {
		if a.kind == accessAssign {
			stats.Assigns++
		} else {
			stats.Reads++
		}
	}
	for _, f := range u.scopes {
		if f.own != nil {
			stats.Scopes++
		}
	}

	if len(u.decls) > 0 {
		alloc := newAllocator(u.names)
		helpers := allocateHelpers(alloc)
		idents, err := u.resolve(alloc, &stats)
		if err != nil {
			return stats, err
		}
		u.synthesize(helpers, idents)
		stats.HelpersEmitted = 3
	} else if len(u.accesses) > 0 {
		a := u.accesses[0]
		err := u.errorAt(errors.CodeScope, msgOutsideScope, a.marker)
		return stats, errors.AddContext(err, errors.CtxSymbol, a.name)
	} else {
		u.stripMarkers()
	}

	if bad := u.leftover(tree.Root()); bad != nil {
		return stats, u.errorAt(errors.CodeScope, msgOutsideScope, bad)
	}

	u.log.Debug("unit desugared",
		"path", tree.Path,
		"declarations", stats.Declarations,
		"scopes", stats.Scopes,
		"reads", stats.Reads,
		"assigns", stats.Assigns,
		"computed", stats.Computed,
		"bindings", stats.Bindings,
	)
	return stats, nil
}
