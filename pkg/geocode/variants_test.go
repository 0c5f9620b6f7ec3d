package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Rua A, 1, Centro", Normalize("  Rua   A,\t1,\n Centro  "))
	assert.Equal(t, "", Normalize("   "))
}

func TestCountrySuffix_Strip(t *testing.T) {
	brasil := newCountrySuffix("Brasil")
	tests := []struct {
		in   string
		want string
	}{
		{"Rua A, 1, Belo Horizonte, MG, Brasil", "Rua A, 1, Belo Horizonte, MG"},
		{"Rua A, 1, Belo Horizonte, MG, BRASIL ", "Rua A, 1, Belo Horizonte, MG"},
		{"Rua A, 1, Belo Horizonte, MG", "Rua A, 1, Belo Horizonte, MG"},
		{"Rua Brasil, 1, Contagem", "Rua Brasil, 1, Contagem"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, brasil.strip(tt.in))
		})
	}
}

func TestExpandAbbreviations(t *testing.T) {
	assert.Equal(t, "Rua das Flores, 10, Bairro Centro", expandAbbreviations("R. das Flores, 10, B. Centro"))
	assert.Equal(t, "Rua das Flores, Bairro Centro", expandAbbreviations("R.das Flores, B.Centro"))
	assert.Equal(t, "Ribeirao Preto", expandAbbreviations("Ribeirao Preto"))
}

func TestFallbackVariants(t *testing.T) {
	got := fallbackVariants("Rua X, 1, B. Y, Cidade/UF, Brasil", newCountrySuffix("Brasil"))
	assert.Equal(t, []string{
		"Rua X, 1, B. Y, Cidade/UF",
		"Rua X, 1, B. Y, Cidade/UF, Brasil",
		"Rua X, 1, Bairro Y, Cidade/UF",
		"Rua X, 1, Bairro Y, Cidade/UF, Brasil",
	}, got)
}

func TestFallbackVariants_NoCountry(t *testing.T) {
	got := fallbackVariants("R. A, 1", newCountrySuffix(""))
	assert.Equal(t, []string{"R. A, 1", "R. A, 1", "Rua A, 1", "Rua A, 1"}, got)
}

func TestCountrySuffix_Empty(t *testing.T) {
	c := newCountrySuffix("")
	assert.Nil(t, c.re)
	assert.Equal(t, "Rua A, 1, Brasil", c.strip("Rua A, 1, Brasil"))
	assert.Equal(t, "Rua A, 1", c.appendTo("Rua A, 1"))
}

func TestGeocoder_CompilesCountryOnce(t *testing.T) {
	fallback := newStubProvider("nominatim")
	g := New(nil, fallback, WithCountry("Brasil"), WithFallbackDelay(0))
	re := g.country.re
	require.NotNil(t, re)

	for range 3 {
		g.attempts("Rua A, 1, Brasil")
	}
	assert.Same(t, re, g.country.re)
	assert.Equal(t, "Brasil", g.country.name)
}
