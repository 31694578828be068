package engine

// I660m2 is the reference inline-six configuration: 60-2 wheel with an
// inverted gap, first TDC 65.8° after the gap reference, and a 20-edge
// camshaft pattern.
var I660m2 = Config{
	Cam: Cam{
		FirstLevel: High,
		Edges: []int{
			289, 389, 1189, 1289, 1489, 1589, 2089, 2189, 2689, 2789,
			3889, 3989, 5089, 5189, 5689, 5789, 6289, 6389, 6589, 6689,
		},
	},
	Crk:       Crk60m2Inv,
	RefToTDC0: 658,
	Cylinders: 6,
}

// I460m1 is a four cylinder example on a 60-1 wheel with a simple
// one-lobe camshaft.
var I460m1 = Config{
	Cam: Cam{
		FirstLevel: Low,
		Edges:      []int{300, 2100, 3900, 5700},
	},
	Crk:       Crk60m1,
	RefToTDC0: 840,
	Cylinders: 4,
}

// DefaultRegistry returns a registry populated with the built-in
// configurations. It panics if a built-in fails validation, which would
// be a defect in this package.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	builtins := map[string]*Config{
		"i6-60m2": &I660m2,
		"i4-60m1": &I460m1,
	}
	for name, cfg := range builtins {
		if err := reg.Add(name, cfg); err != nil {
			panic(err)
		}
	}
	return reg
}
