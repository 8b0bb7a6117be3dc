package model

// Kind is the discriminant of a Source.
type Kind string

const (
	KindSerial  Kind = "serial"
	KindHTTPGet Kind = "http-get"
)

// Source is a resolved acquisition configuration. Exactly one of
// SerialSource or HTTPGetSource is ever constructed for a process run.
type Source interface {
	Kind() Kind
}

type SerialSource struct {
	Port string
}

func (SerialSource) Kind() Kind { return KindSerial }

type HTTPGetSource struct {
	URL           string
	Authorization string
	Key           string
}

func (HTTPGetSource) Kind() Kind { return KindHTTPGet }
