package stopgame

import "math/rand/v2"

const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Catalog is the default category pool a round draws from.
var Catalog = []string{
	"Nombre",
	"Apellido",
	"Animal",
	"Color",
	"Fruta o Verdura",
	"País",
	"Ciudad",
	"Cosa",
	"Profesión",
	"Comida",
	"Deporte",
	"Parte del cuerpo",
	"Instrumento musical",
	"Marca",
	"Película o Serie",
	"Famoso",
	"Canción",
	"Banda o Artista",
}

// Flexible categories accept answers in any language (titles, proper nouns).
var Flexible = map[string]bool{
	"Marca":            true,
	"Película o Serie": true,
	"Famoso":           true,
	"Canción":          true,
	"Banda o Artista":  true,
}

// Rand is the source of randomness for draws.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the process-wide generator.
var DefaultRand Rand = globalRand{}

// DrawLetter picks a letter not yet in used. Once every letter has been used
// it draws from the full alphabet again. The drawn letter is added to used.
func DrawLetter(r Rand, used map[string]bool) string {
	pool := make([]string, 0, len(Alphabet))
	for _, c := range Alphabet {
		if !used[string(c)] {
			pool = append(pool, string(c))
		}
	}
	if len(pool) == 0 {
		for _, c := range Alphabet {
			pool = append(pool, string(c))
		}
	}
	letter := pool[r.IntN(len(pool))]
	used[letter] = true
	return letter
}

// DrawCategories shuffles a copy of catalog and returns its first n entries.
func DrawCategories(r Rand, catalog []string, n int) []string {
	shuffled := append([]string(nil), catalog...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
