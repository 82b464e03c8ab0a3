// Package try wraps a (value, error) pair so that call sites, mostly tests and main
// functions, can unwrap it in one expression.
//
//	conf := try.To(configs.Load(path)).OrFatal(logger)
package try

// Fataler is something which can Fatal, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either holds a value or an error.
//
// It is "ok" when the error is nil, otherwise "ng" and the value is meaningless.
type Either[T any] interface {
	// Get returns (value, nil) when ok, and (zero value, error) when ng.
	Get() (T, error)

	// OrFatal returns the value when ok.
	//
	// When ng, it calls ftl.Fatal with the error.
	// When ftl has Helper() (like *testing.T), that is called first.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value when ok, d otherwise.
	OrDefault(d T) T
}

func To[T any](value T, err error) Either[T] {
	if err == nil {
		return ok[T]{value: value}
	}
	return ng[T]{err: err}
}

// Map converts the value of an ok Either. ng Either passes through.
func Map[T, R any](e Either[T], mapper func(T) R) Either[R] {
	v, err := e.Get()
	if err != nil {
		return ng[R]{err: err}
	}
	return ok[R]{value: mapper(v)}
}

// TryMap is Map with a mapper which can fail.
func TryMap[T, R any](e Either[T], mapper func(T) (R, error)) Either[R] {
	v, err := e.Get()
	if err != nil {
		return ng[R]{err: err}
	}
	return To(mapper(v))
}

type ok[T any] struct {
	value T
}

func (o ok[T]) Get() (T, error) { return o.value, nil }
func (o ok[T]) OrFatal(Fataler) T { return o.value }
func (o ok[T]) OrDefault(T) T { return o.value }

type ng[T any] struct {
	err error
}

func (n ng[T]) Get() (T, error) { return *new(T), n.err }
func (n ng[T]) OrDefault(d T) T { return d }

func (n ng[T]) OrFatal(ftl Fataler) T {
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(n.err)
	return *new(T)
}
