// Package slots compiles sentence templates with annotated placeholders into
// case-insensitive matching rules and extracts placeholder values from text.
//
// A template mixes literal words with markers of the form <name>:
//
//	download <latest> <artifactname> from <flow>
//	download <artifactname> from <flow>/<runid>
//
// Every marker whose name is declared in the Vocabulary becomes a named
// capture group for its Kind:
//
//   - KindFree captures one or more of [A-Za-z0-9/:,_-]
//   - KindStatic captures only the literal slot name itself
//   - KindNumeric captures one or more digits
//
// Markers with undeclared names stay literal text. A template without any
// declared marker compiles to nothing and is reported by Matcher.Dropped.
//
// Matching is left-anchored (the rule must match a prefix of the input) and
// the first rule in construction order wins:
//
//	m, err := slots.New(vocab, templates)
//	if err != nil {
//	    return err
//	}
//	fields, ok := m.Match("download latest model from HelloFlow")
//	// fields == Fields{"latest": "latest", "artifactname": "model", "flow": "HelloFlow"}
//
// A Matcher is immutable once built and safe for concurrent use.
package slots
