// Package args adapts parsers of domain values into flag.Value.
//
//	policy := args.Parser(recurring.ParsePolicy)
//	flag.Var(policy, "policy", "loop policy")
//	flag.Parse()
//	p := policy.Or(conf.Queue().Policy())
package args

type Adapter[T interface{ String() string }] struct {
	value  T
	parser func(string) (T, error)
	isSet  bool
}

func Parser[T interface{ String() string }](parser func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parser: parser}
}

func (a *Adapter[T]) String() string {
	if a == nil || !a.isSet {
		return ""
	}
	return a.value.String()
}

// Set parses s. On error, the previous value is kept.
func (a *Adapter[T]) Set(s string) error {
	v, err := a.parser(s)
	if err != nil {
		return err
	}
	a.value = v
	a.isSet = true
	return nil
}

func (a *Adapter[T]) Value() T {
	return a.value
}

func (a *Adapter[T]) IsSet() bool {
	return a.isSet
}

// Or returns the parsed value, or fallback if the flag is not given.
func (a *Adapter[T]) Or(fallback T) T {
	if !a.isSet {
		return fallback
	}
	return a.value
}
