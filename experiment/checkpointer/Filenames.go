package checkpointer

import "fmt"

// Fixed returns a naming function that always returns filename, so each
// checkpoint overwrites the previous one
func Fixed(filename string) func() string {
	return func() string {
		return filename
	}
}

// Enumerated returns a naming function producing base1.ext, base2.ext,
// and so on, keeping every checkpoint
func Enumerated(base, ext string) func() string {
	i := 0
	return func() string {
		i++
		return fmt.Sprintf("%v%v.%v", base, i, ext)
	}
}
