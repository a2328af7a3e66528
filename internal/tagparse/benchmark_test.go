package tagparse_test

import (
	"testing"

	"github.com/fyrsmithlabs/thoughtd/internal/samples"
	"github.com/fyrsmithlabs/thoughtd/internal/tagparse"
)

func BenchmarkParse(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tagparse.Parse(samples.Raw, tagparse.DefaultTag); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseLinear(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tagparse.ParseLinear(samples.Raw, tagparse.DefaultTag); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkClean(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tagparse.Clean(samples.Raw, tagparse.DefaultTag); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCleanLinear(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tagparse.CleanLinear(samples.Raw, tagparse.DefaultTag); err != nil {
			b.Fatal(err)
		}
	}
}
