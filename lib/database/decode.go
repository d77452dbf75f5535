package database

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Decode reads the value at key into a T. Struct fields are matched by their json tag.
// Numbers are converted to the field type. A missing value yields the zero value of T.
func Decode[T any](db *Database, key string) (T, error) {
	var out T
	v, err := db.Get(key)
	if err != nil || v == nil {
		return out, err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, errors.Wrap(err, "could not create decoder")
	}
	if err := dec.Decode(v); err != nil {
		return out, errors.Wrapf(err, "could not decode %s", key)
	}
	return out, nil
}
