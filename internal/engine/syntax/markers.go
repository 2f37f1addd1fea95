package syntax

// Internal spellings the front-end substitutes for the surface syntax. Both
// are valid JavaScript identifiers, so the rewritten text parses with a
// stock grammar.
const (
	// ProviderLabel labels a declaration statement: `use traits * from X;`
	// becomes `_StraitsProvider: X;`.
	ProviderLabel = "_StraitsProvider"
	// MarkerProperty marks a private access: `a.*b` becomes `a._Straits.b`.
	MarkerProperty = "_Straits"

	SurfaceDeclaration = "use traits * from"
	SurfaceAccess      = ".*"
)
