package schema

import "reflect"

// Options holds the TagSource used to read a struct field's parquet tags.
type Options struct {
	tagSource TagSource
}

// TagSource returns configured TagSource.
func (o *Options) TagSource() TagSource {
	return o.tagSource
}

// Apply applies opts on o and returning o with the modified settings.
func (o *Options) Apply(opts ...Option) *Options {
	for _, f := range opts {
		f(o)
	}
	return o
}

// DefaultOptions returns *Options with default settings.
func DefaultOptions() *Options {
	return &Options{tagSource: defaultTagSource{}}
}

// Option is a functional option that modifies an *Options.
type Option func(*Options)

// WithTagSource returns an Option that sets source as the default TagSource.
func WithTagSource(source TagSource) Option {
	return func(o *Options) {
		o.tagSource = source
	}
}

// StructTag holds the parquet, parquet-key and parquet-value struct tag
// values of one struct field.
type StructTag struct {
	// Value set on parquet struct tag
	Parquet string
	// Value set on parquet-key struct tag
	MapKey string
	// Value set on parquet-value struct tag
	MapValue string
}

// TagSource supplies the StructTag values of a struct field.
type TagSource interface {
	Tags(f reflect.StructField) StructTag
	isTagSource()
}

type defaultTagSource struct{}

var _ TagSource = defaultTagSource{}

func (defaultTagSource) Tags(f reflect.StructField) StructTag {
	return StructTag{
		Parquet:  f.Tag.Get("parquet"),
		MapKey:   f.Tag.Get("parquet-key"),
		MapValue: f.Tag.Get("parquet-value"),
	}
}

func (defaultTagSource) isTagSource() {}
