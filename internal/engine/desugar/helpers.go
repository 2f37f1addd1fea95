package desugar

import (
	"strings"
)

// helperNames are the identifiers the three runtime routines are emitted
// under in one unit.
type helperNames struct {
	testProviderSet string
	getSymbol       string
	defineHidden    string
}

func allocateHelpers(alloc *allocator) helperNames {
	return helperNames{
		testProviderSet: alloc.generate("testProviderSet"),
		getSymbol:       alloc.generate("getSymbol"),
		defineHidden:    alloc.generate("defineHidden"),
	}
}

const helperSource = `function TEST_PROVIDER_SET(set) {
	if (!set || typeof set === "boolean" || typeof set === "number" || typeof set === "string") {
		throw new Error(String(set) + " cannot be used as a provider set.");
	}
}
function GET_SYMBOL(name, ...sets) {
	let symbol;
	for (const set of sets) {
		TEST_PROVIDER_SET(set);
		const candidate = set[name];
		if (typeof candidate !== "symbol") {
			continue;
		}
		if (symbol !== undefined && symbol !== candidate) {
			throw new Error("member " + name + " offered by multiple provider sets.");
		}
		symbol = candidate;
	}
	if (symbol === undefined) {
		throw new Error("no provider set is offering member " + name + ".");
	}
	return symbol;
}
function DEFINE_HIDDEN(target, key, value) {
	Object.defineProperty(target, key, { value: value, configurable: true });
	return value;
}`

// source renders the helper definitions under the allocated names.
func (h helperNames) source() string {
	return strings.NewReplacer(
		"TEST_PROVIDER_SET", h.testProviderSet,
		"GET_SYMBOL", h.getSymbol,
		"DEFINE_HIDDEN", h.defineHidden,
	).Replace(helperSource)
}
