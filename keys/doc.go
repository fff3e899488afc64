// Package keys derives deterministic cache keys from a call's identity and
// arguments.
//
// Two calls derive the same key exactly when their identities are equal and
// their arguments encode to the same canonical form. Values without a
// deterministic form are rejected with types.ErrUnhashableArguments rather
// than stringified; callers can opt them in with a [Keyer] implementation or
// a per-type normalizer.
//
//	d := &keys.Deriver{Typed: true}
//	k, err := d.Derive("users.Fetch", keys.Args{
//	    Positional: []any{42},
//	    Named:      map[string]any{"verbose": true},
//	})
package keys
