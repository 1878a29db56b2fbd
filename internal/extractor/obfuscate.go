package extractor

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"unicode"
)

// Transformer rewrites human-readable text. Structural fields (ids,
// timestamps, references) are never passed to it.
type Transformer interface {
	Transform(s string) string
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(string) string

func (f TransformerFunc) Transform(s string) string { return f(s) }

var loremWords = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit
sed do eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam
quis nostrud exercitation ullamco laboris nisi aliquip ex ea commodo consequat duis aute
irure in reprehenderit voluptate velit esse cillum fugiat nulla pariatur excepteur sint
occaecat cupidatat non proident sunt culpa qui officia deserunt mollit anim id est laborum`)

// SeededObfuscator replaces every word with placeholder text. The output
// depends only on the seed and the input string, so repeated runs and
// repeated occurrences produce the same text.
type SeededObfuscator struct {
	seed uint64
}

// NewSeededObfuscator returns an obfuscator for seed.
func NewSeededObfuscator(seed uint64) *SeededObfuscator {
	return &SeededObfuscator{seed: seed}
}

func (o *SeededObfuscator) Transform(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}

	h := fnv.New64a()
	h.Write([]byte(s))
	rng := rand.New(rand.NewPCG(o.seed, h.Sum64()))

	out := make([]string, len(words))
	for i, w := range words {
		r := loremWords[rng.IntN(len(loremWords))]
		if first := []rune(w)[0]; unicode.IsUpper(first) {
			r = strings.ToUpper(r[:1]) + r[1:]
		}
		out[i] = r
	}
	return strings.Join(out, " ")
}

type identity struct{}

func (identity) Transform(s string) string { return s }
