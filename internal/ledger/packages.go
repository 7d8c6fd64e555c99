package ledger

// Package is a purchasable bundle of tokens.
type Package struct {
	Name       string `json:"name"`
	Tokens     int64  `json:"tokens"`
	PriceCents int64  `json:"price_cents"`
}

var packages = []Package{
	{Name: "starter", Tokens: 10, PriceCents: 990},
	{Name: "standard", Tokens: 25, PriceCents: 2190},
	{Name: "pro", Tokens: 60, PriceCents: 4790},
}

func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

func FindPackage(name string) (Package, bool) {
	for _, p := range packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}
