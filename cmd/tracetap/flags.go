package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

// onceValue rejects a flag given more than once on the command line.
type onceValue struct {
	name  string
	set   bool
	inner pflag.Value
}

func (o *onceValue) String() string { return o.inner.String() }
func (o *onceValue) Type() string   { return o.inner.Type() }

func (o *onceValue) Set(value string) error {
	if o.set {
		return fmt.Errorf("duplicate argument: -%s", o.name)
	}
	o.set = true
	return o.inner.Set(value)
}

type intValue struct{ p *int }

func (v intValue) String() string { return strconv.Itoa(*v.p) }
func (v intValue) Type() string   { return "int" }

func (v intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	*v.p = n
	return nil
}

type stringValue struct{ p *string }

func (v stringValue) String() string { return *v.p }
func (v stringValue) Type() string   { return "string" }

func (v stringValue) Set(s string) error {
	*v.p = s
	return nil
}

func onceIntVarP(flags *pflag.FlagSet, p *int, name, shorthand string, value int, usage string) {
	*p = value
	flags.VarP(&onceValue{name: shorthand, inner: intValue{p: p}}, name, shorthand, usage)
}

func onceStringVarP(flags *pflag.FlagSet, p *string, name, shorthand string, value, usage string) {
	*p = value
	flags.VarP(&onceValue{name: shorthand, inner: stringValue{p: p}}, name, shorthand, usage)
}
