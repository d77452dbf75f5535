// Package dotpath implements the dot-separated path addressing used by the mirror cache
// and the database facade.
//
// A path such as "user.settings.theme" is split into segments. The first segment names a
// top-level entry, every following segment descends one level into a nested object.
// Values are trees of the JSON value model:
//
//   - map[string]any (object)
//   - []any (array)
//   - float64 (number)
//   - string, bool
//   - nil (null)
//
// Reading a path that runs through a missing key or a non-object returns nil; a missing
// key and an explicit null are indistinguishable. Writing a path replaces every
// intermediate that is not a plain object with an empty object, so a scalar or an array
// in the middle of a path is silently discarded.
//
// Values handed in by callers should be passed through Normalize first, which converts
// arbitrary Go values (structs, typed slices, integers, ...) into the JSON value model.
package dotpath
